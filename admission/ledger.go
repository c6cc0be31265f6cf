// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package admission

import (
	"context"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bulletind/storage"
)

// ChangeHook - told when the funding of an account changes
type ChangeHook interface {
	FundingChanged(ctx context.Context, accountID string) error
}

// HookFunc - adapt a function to a ChangeHook
type HookFunc func(ctx context.Context, accountID string) error

func (f HookFunc) FundingChanged(ctx context.Context, accountID string) error {
	return f(ctx, accountID)
}

// Ledger - credits kept in the store
//
// an account may fund as many entries as it has been granted credits,
// and only once its terms have been accepted; concurrent admissions on
// one account are not serialised so a small overspend is possible
type Ledger struct {
	store *storage.Store
	hook  ChangeHook
	log   *logger.L
}

// NewLedger - hook may be nil
func NewLedger(store *storage.Store, hook ChangeHook) *Ledger {
	return &Ledger{
		store: store,
		hook:  hook,
		log:   logger.New("ledger"),
	}
}

// Funded - remaining credits cover count entries
func (l *Ledger) Funded(ctx context.Context, accountID string, count int) (bool, error) {
	account, err := l.store.GetAccount(ctx, accountID)
	if nil != err {
		return false, err
	}
	if !account.TermsAccepted {
		return false, nil
	}
	used, err := l.store.FundedCount(ctx, accountID)
	if nil != err {
		return false, err
	}
	return account.Credits-used >= int64(count), nil
}

// Grant - add credits then signal the change
func (l *Ledger) Grant(ctx context.Context, accountID string, credits int64) error {
	if err := l.store.GrantCredits(ctx, accountID, credits); nil != err {
		return err
	}
	l.log.Infof("grant: %s  credits: %d", accountID, credits)
	return l.changed(ctx, accountID)
}

// AcceptTerms - record acceptance then signal the change
func (l *Ledger) AcceptTerms(ctx context.Context, accountID string) error {
	if err := l.store.AcceptTerms(ctx, accountID); nil != err {
		return err
	}
	l.log.Infof("terms accepted: %s", accountID)
	return l.changed(ctx, accountID)
}

func (l *Ledger) changed(ctx context.Context, accountID string) error {
	if nil == l.hook {
		return nil
	}
	return l.hook.FundingChanged(ctx, accountID)
}
