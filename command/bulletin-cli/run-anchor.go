// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
)

func runPromote(c *cli.Context) error {
	m := getMetadata(c)

	engine, err := m.engine()
	if nil != err {
		return err
	}
	proposed, err := engine.Promote(context.Background())
	if nil != err {
		return err
	}
	if nil == proposed {
		fmt.Fprintf(m.e, "nothing to promote: the draft is empty\n")
		return nil
	}
	if m.verbose {
		fmt.Fprintf(m.e, "the daemon submits the bulletin on its next tick\n")
	}
	return printJson(m.w, proposed)
}

// replacing a submitted transaction needs the live transaction hash
// typed back, so the operator has looked at what is being replaced
func runResubmit(c *cli.Context) error {
	m := getMetadata(c)

	bulletinID, err := requiredString(c, "bulletin")
	if nil != err {
		return err
	}
	confirmation, err := requiredString(c, "confirm")
	if nil != err {
		return err
	}

	engine, err := m.engine()
	if nil != err {
		return err
	}
	bump, err := engine.Resubmit(context.Background(), bulletinID, confirmation)
	if nil != bump {
		printJson(m.w, bump)
	}
	return err
}

func runBackfill(c *cli.Context) error {
	m := getMetadata(c)

	engine, err := m.engine()
	if nil != err {
		return err
	}
	n, err := engine.Backfill(context.Background())
	if nil != err {
		return err
	}
	return printJson(m.w, struct {
		Updated int `json:"updated"`
	}{
		Updated: n,
	})
}
