// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bulletind/storage"
)

type bulletinStatus struct {
	Bulletin *storage.Bulletin `json:"bulletin"`
	Bumps    []storage.Bump    `json:"bumps,omitempty"`
}

type stateSummary struct {
	State     string   `json:"state"`
	Count     int      `json:"count"`
	Bulletins []string `json:"bulletins,omitempty"`
}

// one bulletin with its attempts, or every bulletin not yet published
func runStatus(c *cli.Context) error {
	m := getMetadata(c)
	ctx := context.Background()

	store, err := m.openStore()
	if nil != err {
		return err
	}

	if id := c.String("bulletin"); "" != id {
		b, err := store.GetBulletin(ctx, id)
		if nil != err {
			return err
		}
		bumps, err := store.Bumps(ctx, id)
		if nil != err {
			return err
		}
		return printJson(m.w, bulletinStatus{
			Bulletin: b,
			Bumps:    bumps,
		})
	}

	states := []string{storage.StateDraft, storage.StateProposed, storage.StateSubmitted}
	summary := make([]stateSummary, 0, len(states))
	for _, state := range states {
		list, err := store.BulletinsInState(ctx, state)
		if nil != err {
			return err
		}
		s := stateSummary{
			State: state,
			Count: len(list),
		}
		for _, b := range list {
			s.Bulletins = append(s.Bulletins, b.ID)
		}
		summary = append(summary, s)
	}
	return printJson(m.w, summary)
}
