// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package admission

import (
	"context"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bulletind/storage"
)

// Funding - the billing collaborator
type Funding interface {
	// Funded - the account can pay for count more entries
	Funded(ctx context.Context, accountID string, count int) (bool, error)
}

// Attacher - places funded entries into the draft bulletin
type Attacher interface {
	Attach(ctx context.Context, entryID string) (*storage.Bulletin, error)
}

// Admitter - admission decisions for entries
type Admitter struct {
	store    *storage.Store
	funding  Funding
	attacher Attacher
	log      *logger.L
}

// New - create an admitter
func New(store *storage.Store, funding Funding, attacher Attacher) *Admitter {
	return &Admitter{
		store:    store,
		funding:  funding,
		attacher: attacher,
		log:      logger.New("admission"),
	}
}

// Admit - fund and attach an entry or leave it parked
//
// returns the resulting entry status; parking is not an error
func (a *Admitter) Admit(ctx context.Context, entryID string) (string, error) {
	entry, err := a.store.GetEntry(ctx, entryID)
	if nil != err {
		return "", err
	}

	if storage.EntryParked == entry.Status {
		ok, err := a.funding.Funded(ctx, entry.AccountID, 1)
		if nil != err {
			a.log.Errorf("admit: %s  account: %s  funding error: %s", entryID, entry.AccountID, err)
			return "", err
		}
		if !ok {
			a.log.Debugf("admit: %s  account: %s  parked", entryID, entry.AccountID)
			return storage.EntryParked, nil
		}
		if _, err := a.store.FundEntries(ctx, []string{entryID}, time.Now().UTC()); nil != err {
			return "", err
		}
	}

	// an attach failure leaves a funded entry for the engine sweep
	if _, err := a.attacher.Attach(ctx, entryID); nil != err {
		a.log.Warnf("admit: %s  attach error: %s", entryID, err)
		return storage.EntryFunded, err
	}
	return storage.EntryFunded, nil
}

// Reevaluate - fund and attach parked entries after a funding change
//
// the oldest entries are funded first, as many as the account can pay
// for; returns the number newly funded
func (a *Admitter) Reevaluate(ctx context.Context, accountID string) (int, error) {
	parked, err := a.store.ParkedEntries(ctx, accountID)
	if nil != err {
		return 0, err
	}
	if 0 == len(parked) {
		return 0, nil
	}

	n, err := a.fundable(ctx, accountID, len(parked))
	if nil != err {
		return 0, err
	}
	if 0 == n {
		a.log.Debugf("reevaluate: %s  parked: %d  none funded", accountID, len(parked))
		return 0, nil
	}

	ids := make([]string, n)
	for i := range ids {
		ids[i] = parked[i].ID
	}
	changed, err := a.store.FundEntries(ctx, ids, time.Now().UTC())
	if nil != err {
		return 0, err
	}

	for _, id := range ids {
		if _, err := a.attacher.Attach(ctx, id); nil != err {
			a.log.Warnf("reevaluate: %s  attach: %s  error: %s", accountID, id, err)
		}
	}
	a.log.Infof("reevaluate: %s  funded: %d of %d", accountID, changed, len(parked))
	return int(changed), nil
}

// largest count in [0, limit] that the account can pay for
func (a *Admitter) fundable(ctx context.Context, accountID string, limit int) (int, error) {
	low, high := 0, limit
	for low < high {
		mid := low + (high-low+1)/2
		ok, err := a.funding.Funded(ctx, accountID, mid)
		if nil != err {
			return 0, err
		}
		if ok {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low, nil
}
