// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"strings"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bitmark-inc/bulletind/fault"
)

// names of all chains
const (
	Bitcoin = "bitcoin"
	Testnet = "testnet"
	Signet  = "signet"
	Regtest = "regtest"
)

// Valid - validate a chain name
func Valid(name string) bool {
	switch strings.ToLower(name) {
	case Bitcoin, Testnet, Signet, Regtest:
		return true
	default:
		return false
	}
}

// Params - network parameters for a chain name
func Params(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case Bitcoin:
		return &chaincfg.MainNetParams, nil
	case Testnet:
		return &chaincfg.TestNet3Params, nil
	case Signet:
		return &chaincfg.SigNetParams, nil
	case Regtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fault.ErrInvalidChain
	}
}

// Name - reverse of Params
func Name(params *chaincfg.Params) string {
	switch params.Net {
	case chaincfg.MainNetParams.Net:
		return Bitcoin
	case chaincfg.TestNet3Params.Net:
		return Testnet
	case chaincfg.SigNetParams.Net:
		return Signet
	case chaincfg.RegressionNetParams.Net:
		return Regtest
	default:
		return params.Name
	}
}
