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

func runGrant(c *cli.Context) error {
	m := getMetadata(c)

	accountID, err := requiredString(c, "account")
	if nil != err {
		return err
	}
	credits := c.Int64("credits")
	if credits <= 0 {
		return fmt.Errorf("credits: %d must be positive", credits)
	}

	ledger, err := m.ledger()
	if nil != err {
		return err
	}
	ctx := context.Background()
	if err := ledger.Grant(ctx, accountID, credits); nil != err {
		return err
	}
	account, err := m.store.GetAccount(ctx, accountID)
	if nil != err {
		return err
	}
	return printJson(m.w, account)
}

func runAcceptTerms(c *cli.Context) error {
	m := getMetadata(c)

	accountID, err := requiredString(c, "account")
	if nil != err {
		return err
	}

	ledger, err := m.ledger()
	if nil != err {
		return err
	}
	ctx := context.Background()
	if err := ledger.AcceptTerms(ctx, accountID); nil != err {
		return err
	}
	account, err := m.store.GetAccount(ctx, accountID)
	if nil != err {
		return err
	}
	return printJson(m.w, account)
}
