// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoin_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/storage"
)

// minimal bitcoind
type fakeNode struct {
	sync.Mutex
	calls   map[string]int
	results map[string]interface{}
	errors  map[string]map[string]interface{}
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		calls:   make(map[string]int),
		results: make(map[string]interface{}),
		errors:  make(map[string]map[string]interface{}),
	}
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || "user" != username || "secret" != password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var request struct {
		Id     uint64        `json:"id"`
		Method string        `json:"method"`
		Params []interface{} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); nil != err {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.Lock()
	f.calls[request.Method] += 1
	result := f.results[request.Method]
	rpcError := f.errors[request.Method]
	f.Unlock()

	reply := map[string]interface{}{
		"id":     request.Id,
		"result": result,
		"error":  rpcError,
	}
	if nil != rpcError {
		reply["result"] = nil
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(reply)
}

func (f *fakeNode) fail(method string, rpcError map[string]interface{}) {
	f.Lock()
	f.errors[method] = rpcError
	f.Unlock()
}

func (f *fakeNode) succeed(method string, result interface{}) {
	f.Lock()
	f.results[method] = result
	f.Unlock()
}

func (f *fakeNode) count(method string) int {
	f.Lock()
	defer f.Unlock()
	return f.calls[method]
}

func newTestClient(t *testing.T, f *fakeNode, store *storage.HeaderStore) *bitcoin.Client {
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	c, err := bitcoin.NewClient(&bitcoin.Configuration{
		URL:               server.URL,
		Username:          "user",
		Password:          "secret",
		RequestsPerSecond: 1000,
		Burst:             100,
	}, store)
	require.NoError(t, err)
	return c
}

func TestClientConfiguration(t *testing.T) {
	_, err := bitcoin.NewClient(nil, nil)
	assert.Equal(t, fault.ErrMissingParameters, err)
	_, err = bitcoin.NewClient(&bitcoin.Configuration{}, nil)
	assert.Equal(t, fault.ErrMissingParameters, err)
}

func TestClientBadCredentials(t *testing.T) {
	server := httptest.NewServer(newFakeNode())
	defer server.Close()

	c, err := bitcoin.NewClient(&bitcoin.Configuration{URL: server.URL, Username: "user", Password: "wrong"}, nil)
	require.NoError(t, err)
	_, err = c.BlockCount(context.Background())
	assert.True(t, fault.IsErrProcess(err), "unexpected error: %v", err)
}

func TestClientListUnspent(t *testing.T) {
	f := newFakeNode()
	f.results["listunspent"] = []map[string]interface{}{
		{
			"txid":          "aa00000000000000000000000000000000000000000000000000000000000000",
			"vout":          1,
			"amount":        0.0001,
			"scriptPubKey":  "76a914000000000000000000000000000000000000000088ac",
			"confirmations": 3,
		},
	}
	c := newTestClient(t, f, nil)

	utxos, err := c.ListUnspent(context.Background(), "mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn")
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, int64(10000), utxos[0].Amount)
	assert.Equal(t, uint32(1), utxos[0].Vout)
	assert.Equal(t, int64(3), utxos[0].Confirmations)
	assert.Len(t, utxos[0].ScriptPubKey, 25)
}

func TestClientTransactions(t *testing.T) {
	f := newFakeNode()
	f.results["getrawtransaction"] = map[string]interface{}{
		"txid":          "bb",
		"hex":           "0102",
		"confirmations": 4,
		"blockhash":     "cc",
		"blocktime":     1577836800,
	}
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	status, err := c.GetTransaction(ctx, "bb")
	require.NoError(t, err)
	assert.Equal(t, int64(4), status.Confirmations)
	assert.Equal(t, []byte{1, 2}, status.Raw)
	assert.Equal(t, "cc", status.BlockHash)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), status.BlockTime)

	f.fail("getrawtransaction", map[string]interface{}{"code": -5, "message": "No such mempool or blockchain transaction"})
	_, err = c.GetTransaction(ctx, "bb")
	assert.Equal(t, fault.ErrTransactionNotFound, err)
}

func TestClientSendKnownTransaction(t *testing.T) {
	b, pkScript := testBuilder(t)
	d, err := digest.Bytes(digest.Hash([]byte("bulletin")))
	require.NoError(t, err)
	a, _, err := b.Anchor(d, []bitcoin.UTXO{utxo(pkScript, 1, 100000)}, 1000)
	require.NoError(t, err)

	f := newFakeNode()
	f.results["sendrawtransaction"] = a.Hash
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	txID, err := c.SendRawTransaction(ctx, a.Raw)
	require.NoError(t, err)
	assert.Equal(t, a.Hash, txID)

	f.fail("sendrawtransaction", map[string]interface{}{"code": -27, "message": "Transaction already in block chain"})
	txID, err = c.SendRawTransaction(ctx, a.Raw)
	require.NoError(t, err)
	assert.Equal(t, a.Hash, txID)

	f.fail("sendrawtransaction", map[string]interface{}{"code": -26, "message": "insufficient fee"})
	_, err = c.SendRawTransaction(ctx, a.Raw)
	assert.True(t, fault.IsErrProcess(err))
	assert.True(t, errors.Is(err, fault.ErrTransactionRejected))

	f.fail("sendrawtransaction", map[string]interface{}{"code": -25, "message": "bad-txns-inputs-missingorspent"})
	_, err = c.SendRawTransaction(ctx, a.Raw)
	assert.True(t, errors.Is(err, fault.ErrTransactionRejected))

	f.fail("sendrawtransaction", map[string]interface{}{"code": -28, "message": "Loading block index"})
	_, err = c.SendRawTransaction(ctx, a.Raw)
	assert.False(t, errors.Is(err, fault.ErrTransactionRejected))
}

func TestClientHeadersAreCached(t *testing.T) {
	hash := chainhash.DoubleHashH([]byte("block"))
	f := newFakeNode()
	f.results["getblockheader"] = map[string]interface{}{
		"hash":   hash.String(),
		"height": 700000,
		"time":   1577836800,
	}

	store, err := storage.OpenHeaderStore(filepath.Join(t.TempDir(), "headers"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	c := newTestClient(t, f, store)
	for i := 0; i < 3; i += 1 {
		h, err := c.GetBlockHeader(ctx, hash.String())
		require.NoError(t, err)
		assert.Equal(t, int64(700000), h.Height)
		assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), h.Time)
	}
	assert.Equal(t, 1, f.count("getblockheader"))

	// a new client finds the header on disk
	c2 := newTestClient(t, f, store)
	h, err := c2.GetBlockHeader(ctx, hash.String())
	require.NoError(t, err)
	assert.Equal(t, int64(700000), h.Height)
	assert.Equal(t, 1, f.count("getblockheader"))

	f.fail("getblockheader", map[string]interface{}{"code": -5, "message": "Block not found"})
	_, err = c.GetBlockHeader(ctx, chainhash.DoubleHashH([]byte("other")).String())
	assert.Equal(t, fault.ErrHeaderNotFound, err)

	_, err = c.GetBlockHeader(ctx, "not hex")
	assert.Equal(t, fault.ErrInvalidDigest, err)
}

func TestClientFeeEstimate(t *testing.T) {
	f := newFakeNode()
	f.results["estimatesmartfee"] = map[string]interface{}{"feerate": 0.00012, "blocks": 6}
	f.results["getblockcount"] = 812345
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	rate, err := c.EstimateFeeRate(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), rate)

	f.succeed("estimatesmartfee", map[string]interface{}{"errors": []string{"Insufficient data or no feerate found"}, "blocks": 0})
	rate, err = c.EstimateFeeRate(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rate)

	count, err := c.BlockCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(812345), count)
}

func TestRawHexHelpers(t *testing.T) {
	b, pkScript := testBuilder(t)
	d, err := digest.Bytes(digest.Hash([]byte("bulletin")))
	require.NoError(t, err)
	a, _, err := b.Anchor(d, []bitcoin.UTXO{utxo(pkScript, 1, 100000)}, 1000)
	require.NoError(t, err)

	tx, err := bitcoin.DecodeHex(hex.EncodeToString(a.Raw))
	require.NoError(t, err)
	assert.Equal(t, a.Hash, tx.TxHash().String())

	h, err := bitcoin.TxHash(a.Raw)
	require.NoError(t, err)
	assert.Equal(t, a.Hash, h)
}
