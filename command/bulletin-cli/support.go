// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/bulletind/admission"
	"github.com/bitmark-inc/bulletind/anchor"
	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/bulletin"
	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/keyring"
	"github.com/bitmark-inc/bulletind/storage"
)

type metadata struct {
	file    string
	config  *Configuration
	verbose bool
	e       io.Writer
	w       io.Writer

	// opened on demand, closed by app.After
	store *storage.Store
	close []func() error
}

func getMetadata(c *cli.Context) *metadata {
	return c.App.Metadata["config"].(*metadata)
}

func (m *metadata) configured() error {
	if nil == m.config {
		return fmt.Errorf("this command requires --config-file")
	}
	return nil
}

func (m *metadata) params() (*chaincfg.Params, error) {
	if err := m.configured(); nil != err {
		return nil, err
	}
	return chain.Params(m.config.Chain)
}

func (m *metadata) openStore() (*storage.Store, error) {
	if nil != m.store {
		return m.store, nil
	}
	if err := m.configured(); nil != err {
		return nil, err
	}
	store, err := storage.Open(&m.config.Database)
	if nil != err {
		return nil, err
	}
	m.store = store
	m.close = append(m.close, store.Close)
	return store, nil
}

// the header store belongs to the daemon so the node client here
// keeps headers in memory only
func (m *metadata) node() (*bitcoin.Client, error) {
	if err := m.configured(); nil != err {
		return nil, err
	}
	return bitcoin.NewClient(&m.config.Bitcoin, nil)
}

func (m *metadata) key() (*keyring.Key, error) {
	if err := m.configured(); nil != err {
		return nil, err
	}
	k := m.config.Keyring
	network, err := keyring.Network(k.File)
	if nil != err {
		return nil, err
	}
	if network != m.config.Chain {
		return nil, fmt.Errorf("keyring is for chain: %q not: %q", network, m.config.Chain)
	}

	passphrase := ""
	if "" != k.PassphraseFile {
		passphrase, err = keyring.ReadPassphraseFile(k.PassphraseFile)
	} else {
		passphrase, err = keyring.PromptPassphrase("keyring passphrase: ")
	}
	if nil != err {
		return nil, err
	}
	return keyring.Load(k.File, passphrase)
}

func (m *metadata) batcher() (*bulletin.Batcher, error) {
	store, err := m.openStore()
	if nil != err {
		return nil, err
	}
	policy, err := bulletin.NewPolicy(&m.config.Policy)
	if nil != err {
		return nil, err
	}
	return bulletin.New(store, policy), nil
}

// an engine for one-off operator actions, no events or archive
func (m *metadata) engine() (*anchor.Engine, error) {
	batcher, err := m.batcher()
	if nil != err {
		return nil, err
	}
	node, err := m.node()
	if nil != err {
		return nil, err
	}
	key, err := m.key()
	if nil != err {
		return nil, err
	}
	return anchor.New(&m.config.Anchor, anchor.Dependencies{
		Store:   m.store,
		Batcher: batcher,
		Node:    node,
		Key:     key,
	})
}

// the ledger notifies running daemons through redis when configured,
// otherwise parked entries of the account are re-evaluated here
func (m *metadata) ledger() (*admission.Ledger, error) {
	store, err := m.openStore()
	if nil != err {
		return nil, err
	}
	if "" != m.config.Redis.Address {
		client := admission.NewRedisClient(&m.config.Redis)
		m.close = append(m.close, client.Close)
		return admission.NewLedger(store, admission.NewNotifier(client, m.config.Redis.Channel)), nil
	}

	batcher, err := m.batcher()
	if nil != err {
		return nil, err
	}
	var admitter *admission.Admitter
	ledger := admission.NewLedger(store, admission.HookFunc(func(ctx context.Context, accountID string) error {
		n, err := admitter.Reevaluate(ctx, accountID)
		if nil == err && m.verbose {
			fmt.Fprintf(m.e, "re-evaluated account: %s  admitted: %d\n", accountID, n)
		}
		return err
	}))
	admitter = admission.New(store, ledger, batcher)
	return ledger, nil
}

func (m *metadata) finish() error {
	var first error
	for i := len(m.close) - 1; i >= 0; i -= 1 {
		if err := m.close[i](); nil != err && nil == first {
			first = err
		}
	}
	m.close = nil
	return first
}

func requiredString(c *cli.Context, name string) (string, error) {
	s := c.String(name)
	if "" == s {
		return "", fmt.Errorf("missing --%s: %w", name, fault.ErrMissingParameters)
	}
	return s, nil
}
