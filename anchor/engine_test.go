// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bulletind/anchor"
	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/bitcoin/mocks"
	"github.com/bitmark-inc/bulletind/bulletin"
	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/keyring"
	"github.com/bitmark-inc/bulletind/storage"
	"github.com/bitmark-inc/bulletind/storage/storagetest"
)

type recordedEvent struct {
	kind  string
	event anchor.Event
}

type events struct {
	sync.Mutex
	list []recordedEvent
}

func (e *events) Publish(kind string, payload interface{}) {
	e.Lock()
	e.list = append(e.list, recordedEvent{kind: kind, event: payload.(anchor.Event)})
	e.Unlock()
}

func (e *events) kinds() []string {
	e.Lock()
	defer e.Unlock()
	kinds := make([]string, len(e.list))
	for i, item := range e.list {
		kinds[i] = item.kind
	}
	return kinds
}

type archive struct {
	payloads map[string]string
}

func (a *archive) Archive(ctx context.Context, bulletinID string, d string, payload string) error {
	a.payloads[d] = payload
	return nil
}

type harness struct {
	store    *storage.Store
	batcher  *bulletin.Batcher
	node     *mocks.MockNode
	engine   *anchor.Engine
	key      *keyring.Key
	pkScript []byte
	events   *events
	archive  *archive
	now      time.Time
	entries  []*storagetest.Entry
}

func newHarness(t *testing.T, ctl *gomock.Controller, configuration *anchor.Configuration) *harness {
	h := &harness{
		store:   storagetest.New(t),
		node:    mocks.NewMockNode(ctl),
		events:  &events{},
		archive: &archive{payloads: make(map[string]string)},
		now:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }

	h.batcher = bulletin.New(h.store, bulletin.Policy{Mode: bulletin.ModeManual})
	h.batcher.SetClock(clock)

	key, err := keyring.New(storagetest.Key(9), storagetest.Params)
	require.NoError(t, err)
	h.key = key
	h.pkScript, err = key.PkScript()
	require.NoError(t, err)

	h.engine, err = anchor.New(configuration, anchor.Dependencies{
		Store:    h.store,
		Batcher:  h.batcher,
		Node:     h.node,
		Key:      key,
		Events:   h.events,
		Archiver: h.archive,
	})
	require.NoError(t, err)
	h.engine.SetClock(clock)
	return h
}

// attach funded entries and propose them
func (h *harness) propose(t *testing.T, count int) *storage.Bulletin {
	ctx := context.Background()
	signer := storagetest.NewSigner(t, h.store, fmt.Sprintf("account-%d", len(h.entries)), byte(len(h.entries)+1))
	for i := 0; i < count; i += 1 {
		e := storagetest.NewEntry(t, h.store, signer, []byte(fmt.Sprintf("content %d/%d", len(h.entries), i)), storage.EntryFunded)
		h.entries = append(h.entries, e)
		_, err := h.batcher.Attach(ctx, e.Signature.ID)
		require.NoError(t, err)
	}
	b, err := h.engine.Promote(ctx)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (h *harness) utxo(seed string, amount int64) bitcoin.UTXO {
	return bitcoin.UTXO{
		TxID:          chainhash.DoubleHashH([]byte(seed)).String(),
		Vout:          0,
		Amount:        amount,
		ScriptPubKey:  h.pkScript,
		Confirmations: 10,
	}
}

func (h *harness) bulletin(t *testing.T, id string) *storage.Bulletin {
	b, err := h.store.GetBulletin(context.Background(), id)
	require.NoError(t, err)
	return b
}

func commitmentOf(t *testing.T, raw []byte) string {
	tx, err := bitcoin.Decode(raw)
	require.NoError(t, err)
	d, err := bitcoin.Commitment(tx)
	require.NoError(t, err)
	return fmt.Sprintf("%x", d)
}

// node state keyed by transaction id
type chainState struct {
	sync.Mutex
	confirmations map[string]int64
	blockHash     string
	sent          [][]byte
	rejections    int
}

func newChainState() *chainState {
	return &chainState{
		confirmations: make(map[string]int64),
		blockHash:     chainhash.DoubleHashH([]byte("block")).String(),
	}
}

func (c *chainState) set(txID string, confirmations int64) {
	c.Lock()
	c.confirmations[txID] = confirmations
	c.Unlock()
}

func (c *chainState) expect(node *mocks.MockNode) {
	node.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, raw []byte) (string, error) {
			txID, err := bitcoin.TxHash(raw)
			if nil != err {
				return "", err
			}
			c.Lock()
			defer c.Unlock()
			if c.rejections > 0 {
				c.rejections -= 1
				return "", fmt.Errorf("%w: insufficient fee", fault.ErrTransactionRejected)
			}
			c.sent = append(c.sent, raw)
			if _, ok := c.confirmations[txID]; !ok {
				c.confirmations[txID] = 0
			}
			return txID, nil
		}).AnyTimes()

	node.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, txID string) (*bitcoin.TxStatus, error) {
			c.Lock()
			defer c.Unlock()
			n, ok := c.confirmations[txID]
			if !ok {
				return nil, fault.ErrTransactionNotFound
			}
			status := &bitcoin.TxStatus{
				Hash:          txID,
				Confirmations: n,
			}
			if n > 0 {
				status.BlockHash = c.blockHash
				status.BlockTime = time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
			}
			return status, nil
		}).AnyTimes()

	node.EXPECT().GetBlockHeader(gomock.Any(), c.blockHash).Return(&bitcoin.BlockHeader{
		Hash:   c.blockHash,
		Height: 123,
		Time:   time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC),
	}, nil).AnyTimes()

	node.EXPECT().EstimateFeeRate(gomock.Any(), gomock.Any()).Return(int64(2000), nil).AnyTimes()
}

func (c *chainState) sentCount() int {
	c.Lock()
	defer c.Unlock()
	return len(c.sent)
}

func TestEndToEnd(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, nil)
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), h.key.Address().EncodeAddress()).Return([]bitcoin.UTXO{h.utxo("funding", 100000)}, nil).Times(1)

	ctx := context.Background()
	proposed := h.propose(t, 1)
	assert.Equal(t, storage.StateProposed, proposed.State)

	// a single entry bulletin commits the hash of its only entry hash
	entryHash := h.entries[0].Signature.SignatureHash
	assert.Equal(t, digest.Hash([]byte(entryHash)), *proposed.Hash)
	assert.Equal(t, entryHash, h.archive.payloads[*proposed.Hash])

	h.engine.Tick(ctx)
	submitted := h.bulletin(t, proposed.ID)
	assert.Equal(t, storage.StateSubmitted, submitted.State)
	require.NotNil(t, submitted.RawTransactionHash)
	assert.Equal(t, *proposed.Hash, commitmentOf(t, submitted.RawTransaction))
	assert.Equal(t, 1, chain.sentCount())

	// mined but not deep enough
	chain.set(*submitted.RawTransactionHash, 2)
	h.engine.Tick(ctx)
	assert.Equal(t, storage.StateSubmitted, h.bulletin(t, proposed.ID).State)

	chain.set(*submitted.RawTransactionHash, 3)
	h.engine.Tick(ctx)
	published := h.bulletin(t, proposed.ID)
	assert.Equal(t, storage.StatePublished, published.State)
	require.NotNil(t, published.BlockHash)
	assert.Equal(t, chain.blockHash, *published.BlockHash)
	assert.Equal(t, int64(123), *published.BlockHeight)
	require.NotNil(t, published.BlockTime)
	assert.Equal(t, *submitted.RawTransactionHash, *published.RawTransactionHash)

	assert.Equal(t, []string{anchor.EventProposed, anchor.EventSubmitted, anchor.EventPublished}, h.events.kinds())

	// nothing further happens to a published bulletin
	h.engine.Tick(ctx)
	assert.Equal(t, 1, chain.sentCount())
}

func TestFeeBumpKeepsDigest(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, &anchor.Configuration{BumpInterval: 600})
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("funding", 100000)}, nil).Times(1)

	ctx := context.Background()
	proposed := h.propose(t, 3)
	h.engine.Tick(ctx)

	// not yet due for a bump
	h.now = h.now.Add(5 * time.Minute)
	h.engine.Tick(ctx)
	bumps, err := h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	require.Len(t, bumps, 1)

	h.now = h.now.Add(6 * time.Minute)
	h.engine.Tick(ctx)
	bumps, err = h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	require.Len(t, bumps, 2)

	replacement, original := bumps[0], bumps[1]
	assert.Equal(t, storage.BumpFee, replacement.Kind)
	assert.Equal(t, 1, replacement.Counter)
	assert.True(t, replacement.Fee > original.Fee, "fee did not increase")
	assert.Equal(t, *proposed.Hash, commitmentOf(t, replacement.RawTransaction))
	assert.Equal(t, commitmentOf(t, original.RawTransaction), commitmentOf(t, replacement.RawTransaction))

	live := h.bulletin(t, proposed.ID)
	assert.Equal(t, replacement.TransactionHash, *live.RawTransactionHash)

	// the replaced transaction is the one that got mined
	chain.Lock()
	delete(chain.confirmations, replacement.TransactionHash)
	chain.Unlock()
	chain.set(original.TransactionHash, 6)
	h.engine.Tick(ctx)

	published := h.bulletin(t, proposed.ID)
	assert.Equal(t, storage.StatePublished, published.State)
	assert.Equal(t, original.TransactionHash, *published.RawTransactionHash)
	assert.Contains(t, h.events.kinds(), anchor.EventBumped)
}

func TestFeeCeiling(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, &anchor.Configuration{BumpInterval: 60, FeeCeiling: 600})
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("funding", 100000)}, nil).Times(1)

	ctx := context.Background()
	proposed := h.propose(t, 1)
	h.engine.Tick(ctx)

	h.now = h.now.Add(time.Hour)
	h.engine.Tick(ctx)

	bumps, err := h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	assert.Len(t, bumps, 1, "bumped beyond the ceiling")
}

func TestUnknownTransactionIsRebroadcast(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, nil)
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("funding", 100000)}, nil).Times(1)

	ctx := context.Background()
	proposed := h.propose(t, 1)
	h.engine.Tick(ctx)
	submitted := h.bulletin(t, proposed.ID)

	// the node lost the transaction
	chain.Lock()
	delete(chain.confirmations, *submitted.RawTransactionHash)
	chain.Unlock()

	h.engine.Tick(ctx)
	require.Equal(t, 2, chain.sentCount())
	assert.Equal(t, chain.sent[0], chain.sent[1], "rebroadcast changed the transaction")

	bumps, err := h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	assert.Len(t, bumps, 1)
}

func TestRejectedReplacementEscalates(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, &anchor.Configuration{BumpInterval: 600})
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("funding", 100000)}, nil).Times(1)

	ctx := context.Background()
	proposed := h.propose(t, 2)
	h.engine.Tick(ctx)

	// the node refuses the first replacement and its rebroadcast
	chain.Lock()
	chain.rejections = 2
	chain.Unlock()

	h.now = h.now.Add(11 * time.Minute)
	h.engine.Tick(ctx)
	bumps, err := h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	require.Len(t, bumps, 2)
	assert.Equal(t, 1, chain.sentCount())

	// well inside the bump interval, but the rejection forces the next step
	h.now = h.now.Add(time.Minute)
	h.engine.Tick(ctx)
	bumps, err = h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	require.Len(t, bumps, 3)

	escalated, rejected := bumps[0], bumps[1]
	assert.Equal(t, 2, escalated.Counter)
	assert.Equal(t, storage.BumpFee, escalated.Kind)
	assert.True(t, escalated.Fee > rejected.Fee, "fee did not increase")
	assert.Equal(t, *proposed.Hash, commitmentOf(t, escalated.RawTransaction))
	assert.Equal(t, 2, chain.sentCount())
	assert.Equal(t, escalated.RawTransaction, chain.sent[1])
	assert.Equal(t, escalated.TransactionHash, *h.bulletin(t, proposed.ID).RawTransactionHash)

	// accepted now, so nothing more until the interval passes
	h.now = h.now.Add(time.Minute)
	h.engine.Tick(ctx)
	bumps, err = h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	assert.Len(t, bumps, 3)
}

func TestUnknownReplacementIsBumpedWhenDue(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, &anchor.Configuration{BumpInterval: 600})
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("funding", 100000)}, nil).Times(1)

	ctx := context.Background()
	proposed := h.propose(t, 1)
	h.engine.Tick(ctx)

	h.now = h.now.Add(11 * time.Minute)
	h.engine.Tick(ctx)
	bumps, err := h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	require.Len(t, bumps, 2)

	// the node evicted the replacement
	chain.Lock()
	delete(chain.confirmations, bumps[0].TransactionHash)
	chain.Unlock()

	h.now = h.now.Add(11 * time.Minute)
	h.engine.Tick(ctx)
	bumps, err = h.store.Bumps(ctx, proposed.ID)
	require.NoError(t, err)
	require.Len(t, bumps, 3)
	assert.Equal(t, 2, bumps[0].Counter)
	assert.True(t, bumps[0].Fee > bumps[1].Fee, "fee did not increase")
}

func TestSubmitUsesDistinctInputs(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, nil)
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{
		h.utxo("one", 100000),
		h.utxo("two", 90000),
	}, nil).Times(1)

	ctx := context.Background()
	first := h.propose(t, 1)
	second := h.propose(t, 1)
	h.engine.Tick(ctx)

	b1 := h.bulletin(t, first.ID)
	b2 := h.bulletin(t, second.ID)
	require.Equal(t, storage.StateSubmitted, b1.State)
	require.Equal(t, storage.StateSubmitted, b2.State)

	tx1, err := bitcoin.Decode(b1.RawTransaction)
	require.NoError(t, err)
	tx2, err := bitcoin.Decode(b2.RawTransaction)
	require.NoError(t, err)
	assert.NotEqual(t, tx1.TxIn[0].PreviousOutPoint, tx2.TxIn[0].PreviousOutPoint)
}

func TestSubmitWithoutFunds(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, nil)
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	ctx := context.Background()
	proposed := h.propose(t, 1)
	h.engine.Tick(ctx)
	assert.Equal(t, storage.StateProposed, h.bulletin(t, proposed.ID).State)

	// retried on the next tick
	h.engine.Tick(ctx)
	assert.Equal(t, 0, chain.sentCount())
}

func TestResubmit(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, nil)
	chain := newChainState()
	chain.expect(h.node)
	gomock.InOrder(
		h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("first", 100000)}, nil),
		h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("second", 100000)}, nil),
	)

	ctx := context.Background()
	proposed := h.propose(t, 2)

	_, err := h.engine.Resubmit(ctx, proposed.ID, "anything")
	assert.Equal(t, fault.ErrInvalidBulletinState, err)

	h.engine.Tick(ctx)
	submitted := h.bulletin(t, proposed.ID)

	_, err = h.engine.Resubmit(ctx, proposed.ID, "not the live hash")
	assert.Equal(t, fault.ErrConfirmationMismatch, err)

	bump, err := h.engine.Resubmit(ctx, proposed.ID, *submitted.RawTransactionHash)
	require.NoError(t, err)
	assert.Equal(t, storage.BumpResubmit, bump.Kind)
	assert.Equal(t, 1, bump.Counter)
	assert.Equal(t, *proposed.Hash, commitmentOf(t, bump.RawTransaction))

	tx1, err := bitcoin.Decode(submitted.RawTransaction)
	require.NoError(t, err)
	tx2, err := bitcoin.Decode(bump.RawTransaction)
	require.NoError(t, err)
	assert.NotEqual(t, tx1.TxIn[0].PreviousOutPoint, tx2.TxIn[0].PreviousOutPoint)

	live := h.bulletin(t, proposed.ID)
	assert.Equal(t, bump.TransactionHash, *live.RawTransactionHash)
	assert.Contains(t, h.events.kinds(), anchor.EventResubmitted)

	_, err = h.engine.Resubmit(ctx, "no-such-bulletin", bump.TransactionHash)
	assert.Equal(t, fault.ErrBulletinNotFound, err)
}

func TestSweepAttachesFundedEntries(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, nil)
	ctx := context.Background()

	signer := storagetest.NewSigner(t, h.store, "account-1", 1)
	e := storagetest.NewEntry(t, h.store, signer, []byte("content"), storage.EntryFunded)
	h.engine.Tick(ctx)

	stored, err := h.store.GetEntry(ctx, e.Signature.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BulletinID)

	draft, err := h.store.Draft(ctx)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, *stored.BulletinID)
}

func TestBackfill(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	h := newHarness(t, ctl, nil)
	chain := newChainState()
	chain.expect(h.node)
	h.node.EXPECT().ListUnspent(gomock.Any(), gomock.Any()).Return([]bitcoin.UTXO{h.utxo("funding", 100000)}, nil)

	ctx := context.Background()
	proposed := h.propose(t, 1)
	h.engine.Tick(ctx)
	submitted := h.bulletin(t, proposed.ID)
	chain.set(*submitted.RawTransactionHash, 10)
	h.engine.Tick(ctx)
	require.Equal(t, storage.StatePublished, h.bulletin(t, proposed.ID).State)

	n, err := h.engine.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// as left by an older release
	err = h.store.DB().Model(&storage.Bulletin{}).Where("id = ?", proposed.ID).
		Updates(map[string]interface{}{"block_hash": nil, "block_time": nil}).Error
	require.NoError(t, err)

	n, err = h.engine.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	filled := h.bulletin(t, proposed.ID)
	require.NotNil(t, filled.BlockHash)
	require.NotNil(t, filled.BlockTime)
	assert.Equal(t, chain.blockHash, *filled.BlockHash)
	assert.True(t, filled.BlockTime.Equal(time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)))

	n, err = h.engine.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMissingDependencies(t *testing.T) {
	_, err := anchor.New(nil, anchor.Dependencies{})
	assert.Equal(t, fault.ErrMissingParameters, err)
}
