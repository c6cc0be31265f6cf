// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/keyring"
)

type generateResult struct {
	Chain      string `json:"chain"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Address    string `json:"address"`
}

// a signer key, nothing is stored
func runGenerate(c *cli.Context) error {
	m := getMetadata(c)

	name := c.String("chain")
	if "" == name && nil != m.config {
		name = m.config.Chain
	}
	if "" == name {
		name = chain.Bitcoin
	}
	params, err := chain.Params(name)
	if nil != err {
		return err
	}

	key, err := keyring.Generate(params)
	if nil != err {
		return err
	}
	wif, err := btcutil.NewWIF(key.PrivateKey(), params, true)
	if nil != err {
		return err
	}

	return printJson(m.w, generateResult{
		Chain:      name,
		PrivateKey: wif.String(),
		PublicKey:  hex.EncodeToString(key.PrivateKey().PubKey().SerializeCompressed()),
		Address:    key.Address().EncodeAddress(),
	})
}

func runAddress(c *cli.Context) error {
	m := getMetadata(c)

	key, err := m.key()
	if nil != err {
		return err
	}
	script, err := key.PkScript()
	if nil != err {
		return err
	}
	return printJson(m.w, struct {
		Chain    string `json:"chain"`
		Address  string `json:"address"`
		PkScript string `json:"pk_script"`
	}{
		Chain:    m.config.Chain,
		Address:  key.Address().EncodeAddress(),
		PkScript: hex.EncodeToString(script),
	})
}
