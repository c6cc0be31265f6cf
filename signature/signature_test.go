// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signature_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bulletind/signature"
)

var params = &chaincfg.RegressionNetParams

func testKey(seed byte) *btcec.PrivateKey {
	k, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return k
}

func TestSignVerify(t *testing.T) {
	key := testKey(1)
	address, err := signature.Address(key.PubKey(), true, params)
	require.NoError(t, err)

	payloads := [][]byte{{}, []byte("hello"), bytes.Repeat([]byte{0xff}, 300)}
	for i, payload := range payloads {
		sig, err := signature.Sign(payload, key)
		require.NoError(t, err, "%d: sign", i)
		assert.Len(t, sig, signature.Length)
		assert.True(t, signature.Verify(payload, sig, address, params), "%d: verify", i)
	}
}

func TestVerifyRejects(t *testing.T) {
	key := testKey(1)
	other := testKey(2)
	address, _ := signature.Address(key.PubKey(), true, params)
	otherAddress, _ := signature.Address(other.PubKey(), true, params)
	mainnetAddress, _ := signature.Address(key.PubKey(), true, &chaincfg.MainNetParams)

	payload := []byte("document hash")
	sig, err := signature.Sign(payload, key)
	require.NoError(t, err)

	truncated := sig[:64]
	flipped := append([]byte{}, sig...)
	flipped[10] ^= 0x01
	badHeader := append([]byte{}, sig...)
	badHeader[0] = 0

	assert.False(t, signature.Verify([]byte("another hash"), sig, address, params), "different payload")
	assert.False(t, signature.Verify(payload, sig, otherAddress, params), "different key")
	assert.False(t, signature.Verify(payload, sig, mainnetAddress, params), "different network")
	assert.False(t, signature.Verify(payload, truncated, address, params), "truncated")
	assert.False(t, signature.Verify(payload, flipped, address, params), "flipped bit")
	assert.False(t, signature.Verify(payload, badHeader, address, params), "bad header")
	assert.False(t, signature.Verify(payload, nil, address, params), "nil")
	assert.False(t, signature.Verify(payload, sig, "not an address", params), "garbage address")
}

func TestRecoverPubkey(t *testing.T) {
	key := testKey(3)
	payload := []byte("challenge")
	sig, err := signature.Sign(payload, key)
	require.NoError(t, err)

	pub, compressed, err := signature.RecoverPubkey(payload, sig)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.True(t, pub.IsEqual(key.PubKey()))
}

func TestConcurrentUse(t *testing.T) {
	key := testKey(4)
	address, _ := signature.Address(key.PubKey(), true, params)

	var wg sync.WaitGroup
	failures := make(chan int, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := []byte{byte(n)}
			sig, err := signature.Sign(payload, key)
			if nil != err || !signature.Verify(payload, sig, address, params) {
				failures <- n
			}
		}(i)
	}
	wg.Wait()
	close(failures)
	for n := range failures {
		t.Errorf("payload %d failed", n)
	}
}
