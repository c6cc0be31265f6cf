// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package signature - recoverable message signatures
//
// Messages are hashed in the Bitcoin signed message format and signed
// with 65 byte compact signatures, so the signer's public key and
// therefore address can be recovered from the signature alone.
//
// Nothing here holds state; all functions are safe for concurrent use.
package signature

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Length - size of a compact recoverable signature
const Length = 65

const messagePrefix = "Bitcoin Signed Message:\n"

// MessageHash - digest actually signed for a payload
func MessageHash(payload []byte) []byte {
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail
	_ = wire.WriteVarString(&buf, 0, messagePrefix)
	_ = wire.WriteVarBytes(&buf, 0, payload)
	return chainhash.DoubleHashB(buf.Bytes())
}

// Sign - produce a recoverable signature over the payload
func Sign(payload []byte, privateKey *btcec.PrivateKey) ([]byte, error) {
	return ecdsa.SignCompact(privateKey, MessageHash(payload), true)
}

// RecoverPubkey - the public key that produced a signature
//
// the boolean is true when the signature refers to the compressed
// form of the key
func RecoverPubkey(payload []byte, signature []byte) (*btcec.PublicKey, bool, error) {
	return ecdsa.RecoverCompact(signature, MessageHash(payload))
}

// Address - P2PKH address of a public key
func Address(publicKey *btcec.PublicKey, compressed bool, params *chaincfg.Params) (string, error) {
	var serialised []byte
	if compressed {
		serialised = publicKey.SerializeCompressed()
	} else {
		serialised = publicKey.SerializeUncompressed()
	}
	address, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialised), params)
	if nil != err {
		return "", err
	}
	return address.EncodeAddress(), nil
}

// Verify - true only if the signature over payload was made by the
// key behind claimedAddress
func Verify(payload []byte, signature []byte, claimedAddress string, params *chaincfg.Params) bool {
	if Length != len(signature) {
		return false
	}
	claimed, err := btcutil.DecodeAddress(claimedAddress, params)
	if nil != err || !claimed.IsForNet(params) {
		return false
	}
	publicKey, compressed, err := RecoverPubkey(payload, signature)
	if nil != err {
		return false
	}
	recovered, err := Address(publicKey, compressed, params)
	if nil != err {
		return false
	}
	return recovered == claimed.EncodeAddress()
}
