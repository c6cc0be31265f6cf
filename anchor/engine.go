// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/bulletin"
	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/keyring"
	"github.com/bitmark-inc/bulletind/storage"
)

// EventPublisher - receives bulletin lifecycle events
type EventPublisher interface {
	Publish(kind string, payload interface{})
}

// Archiver - keeps the payload text of proposed bulletins
type Archiver interface {
	Archive(ctx context.Context, bulletinID string, digest string, payload string) error
}

// Dependencies - collaborators of the engine, Headers, Events and
// Archiver may be nil
type Dependencies struct {
	Store    *storage.Store
	Batcher  *bulletin.Batcher
	Node     bitcoin.Node
	Key      *keyring.Key
	Headers  *storage.HeaderStore
	Events   EventPublisher
	Archiver Archiver
}

// Engine - the anchoring loop
type Engine struct {
	sync.Mutex

	store    *storage.Store
	batcher  *bulletin.Batcher
	node     bitcoin.Node
	builder  *bitcoin.Builder
	address  string
	headers  *storage.HeaderStore
	events   EventPublisher
	archiver Archiver

	settings settings
	log      *logger.L

	// for tests
	now func() time.Time
}

// New - create an engine
func New(configuration *Configuration, d Dependencies) (*Engine, error) {
	if nil == d.Store || nil == d.Batcher || nil == d.Node || nil == d.Key {
		return nil, fault.ErrMissingParameters
	}
	builder, err := bitcoin.NewBuilder(d.Key)
	if nil != err {
		return nil, err
	}
	return &Engine{
		store:    d.Store,
		batcher:  d.Batcher,
		node:     d.Node,
		builder:  builder,
		address:  d.Key.Address().EncodeAddress(),
		headers:  d.Headers,
		events:   d.Events,
		archiver: d.Archiver,
		settings: resolve(configuration),
		log:      logger.New("anchor"),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// SetClock - replace the time source
func (e *Engine) SetClock(now func() time.Time) {
	e.Lock()
	e.now = now
	e.Unlock()
}

// Run - background process running a tick every interval
func (e *Engine) Run(args interface{}, shutdown <-chan struct{}) {
	log := e.log
	log.Infof("starting…  address: %s  interval: %s", e.address, e.settings.interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-shutdown
		cancel()
	}()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-time.After(e.settings.interval):
			e.Tick(ctx)
		}
	}
	log.Info("shutting down…")
}

// Tick - run every step once
func (e *Engine) Tick(ctx context.Context) {
	e.Lock()
	defer e.Unlock()

	if _, err := e.sweep(ctx); nil != err {
		e.log.Errorf("sweep: error: %s", err)
	}
	if _, err := e.promote(ctx, false); nil != err {
		e.log.Errorf("promote: error: %s", err)
	}
	if _, err := e.submit(ctx); nil != err {
		e.log.Errorf("submit: error: %s", err)
	}
	if err := e.monitor(ctx); nil != err {
		e.log.Errorf("monitor: error: %s", err)
	}
}

// Promote - operator promotion of the draft regardless of policy
func (e *Engine) Promote(ctx context.Context) (*storage.Bulletin, error) {
	e.Lock()
	defer e.Unlock()
	return e.promote(ctx, true)
}

func (e *Engine) sweep(ctx context.Context) (int, error) {
	list, err := e.store.UnattachedFunded(ctx, e.settings.sweepLimit)
	if nil != err {
		return 0, err
	}
	n := 0
	for _, entry := range list {
		if _, err := e.batcher.Attach(ctx, entry.ID); nil != err {
			e.log.Warnf("sweep: entry: %s  error: %s", entry.ID, err)
			continue
		}
		n += 1
	}
	if n > 0 {
		e.log.Infof("sweep: attached: %d", n)
	}
	return n, nil
}

func (e *Engine) promote(ctx context.Context, force bool) (*storage.Bulletin, error) {
	proposed, err := e.batcher.Propose(ctx, force)
	if nil != err || nil == proposed {
		return nil, err
	}

	if nil != e.archiver {
		payload, d, err := e.batcher.Payload(ctx, proposed.ID)
		if nil == err {
			err = e.archiver.Archive(ctx, proposed.ID, d, payload)
		}
		if nil != err {
			e.log.Errorf("archive: bulletin: %s  error: %s", proposed.ID, err)
		}
	}
	e.publish(EventProposed, proposed, nil)
	return proposed, nil
}

// digest recomputed from the stored entries must match the frozen one
func (e *Engine) commitment(ctx context.Context, b *storage.Bulletin) ([digest.Size]byte, error) {
	var empty [digest.Size]byte
	_, d, err := e.batcher.Payload(ctx, b.ID)
	if nil != err {
		return empty, err
	}
	if nil == b.Hash || d != *b.Hash {
		e.log.Criticalf("bulletin: %s  digest: %v  recomputed: %s", b.ID, b.Hash, d)
		return empty, fault.ErrInvalidDigest
	}
	return digest.Bytes(d)
}

func (e *Engine) feeRate(ctx context.Context) int64 {
	rate, err := e.node.EstimateFeeRate(ctx, e.settings.confirmationTarget)
	if nil != err {
		e.log.Warnf("fee estimate: error: %s", err)
	}
	if rate < e.settings.minimumFeeRate {
		return e.settings.minimumFeeRate
	}
	return rate
}

func (e *Engine) submit(ctx context.Context) (int, error) {
	list, err := e.store.BulletinsInState(ctx, storage.StateProposed)
	if nil != err || 0 == len(list) {
		return 0, err
	}

	utxos, err := e.node.ListUnspent(ctx, e.address)
	if nil != err {
		return 0, err
	}
	rate := e.feeRate(ctx)

	n := 0
	for i := range list {
		b := &list[i]
		spent, err := e.submitOne(ctx, b, utxos, rate)
		if nil != err {
			e.log.Errorf("submit: bulletin: %s  error: %s", b.ID, err)
			continue
		}
		utxos = without(utxos, spent)
		n += 1
	}
	return n, nil
}

func (e *Engine) submitOne(ctx context.Context, b *storage.Bulletin, utxos []bitcoin.UTXO, rate int64) ([]bitcoin.UTXO, error) {
	d, err := e.commitment(ctx, b)
	if nil != err {
		return nil, err
	}
	a, spent, err := e.builder.Anchor(d, utxos, rate)
	if nil != err {
		return nil, err
	}

	bump := newBump(storage.BumpBroadcast, a)
	if err := e.batcher.MarkSubmitted(ctx, b.ID, bump); nil != err {
		return nil, err
	}
	e.publish(EventSubmitted, b, bump)

	// recorded, so a failed broadcast is retried by monitor
	e.broadcast(ctx, b.ID, bump)
	return spent, nil
}

func (e *Engine) broadcast(ctx context.Context, bulletinID string, bump *storage.Bump) error {
	_, err := e.node.SendRawTransaction(ctx, bump.RawTransaction)
	if nil != err {
		e.log.Warnf("broadcast: bulletin: %s  counter: %d  tx: %s  error: %s", bulletinID, bump.Counter, bump.TransactionHash, err)
		return err
	}
	e.log.Infof("broadcast: bulletin: %s  counter: %d  tx: %s", bulletinID, bump.Counter, bump.TransactionHash)
	return nil
}

func (e *Engine) monitor(ctx context.Context) error {
	list, err := e.store.BulletinsInState(ctx, storage.StateSubmitted)
	if nil != err {
		return err
	}
	for i := range list {
		if err := e.monitorOne(ctx, &list[i]); nil != err {
			e.log.Errorf("monitor: bulletin: %s  error: %s", list[i].ID, err)
		}
	}
	return nil
}

func (e *Engine) monitorOne(ctx context.Context, b *storage.Bulletin) error {
	bumps, err := e.store.Bumps(ctx, b.ID)
	if nil != err {
		return err
	}
	if 0 == len(bumps) {
		return fault.ErrTransactionNotFound
	}

	// any attempt may be the one that was mined
	liveKnown := false
	for i := range bumps {
		status, err := e.node.GetTransaction(ctx, bumps[i].TransactionHash)
		if fault.ErrTransactionNotFound == err {
			continue
		}
		if nil != err {
			return err
		}
		if 0 == i {
			liveKnown = true
		}
		if status.Confirmations <= 0 {
			continue
		}
		if status.Confirmations < e.settings.confirmations {
			e.log.Debugf("confirm: bulletin: %s  counter: %d  confirmations: %d", b.ID, bumps[i].Counter, status.Confirmations)
			return nil
		}
		return e.confirm(ctx, b, &bumps[i], status)
	}

	// an attempt the node refuses or drops is escalated like a stuck one
	live := &bumps[0]
	due := e.now().Sub(live.StartedAt) >= e.settings.bumpInterval
	if !liveKnown && !due {
		err := e.broadcast(ctx, b.ID, live)
		if !errors.Is(err, fault.ErrTransactionRejected) {
			return err
		}
		e.log.Infof("monitor: bulletin: %s  counter: %d  rejected: escalating", b.ID, live.Counter)
	} else if !due {
		return nil
	}
	return e.bump(ctx, b, live)
}

func (e *Engine) confirm(ctx context.Context, b *storage.Bulletin, bump *storage.Bump, status *bitcoin.TxStatus) error {
	header, err := e.node.GetBlockHeader(ctx, status.BlockHash)
	if nil != err {
		return err
	}
	block := storage.Block{
		Hash:   header.Hash,
		Height: header.Height,
		Time:   header.Time,
	}
	err = e.batcher.Publish(ctx, b.ID, bump, block)
	if fault.ErrAlreadyPublished == err {
		return nil
	}
	if nil != err {
		return err
	}

	if nil != e.headers {
		hash, err := chainhash.NewHashFromStr(header.Hash)
		if nil == err {
			err = e.headers.SetCheckpoint(hash)
		}
		if nil != err {
			e.log.Warnf("checkpoint: %s  error: %s", header.Hash, err)
		}
	}

	b.BlockHash = &block.Hash
	b.BlockHeight = &block.Height
	e.publish(EventPublished, b, bump)
	return nil
}

func (e *Engine) bump(ctx context.Context, b *storage.Bulletin, live *storage.Bump) error {
	rate := e.feeRate(ctx)
	if len(live.RawTransaction) > 0 {
		previous := live.Fee * 1000 / int64(len(live.RawTransaction))
		escalated := int64(float64(previous) * e.settings.feeMultiplier)
		if escalated > rate {
			rate = escalated
		}
	}

	a, err := e.builder.Replace(live.RawTransaction, live.InputValue, live.Fee, rate)
	if nil != err {
		return err
	}
	if a.Fee > e.settings.feeCeiling {
		e.log.Warnf("bump: bulletin: %s  fee: %d  ceiling: %d", b.ID, a.Fee, e.settings.feeCeiling)
		return fault.ErrFeeCeilingReached
	}

	bump := newBump(storage.BumpFee, a)
	if err := e.batcher.AddAttempt(ctx, b.ID, bump); nil != err {
		return err
	}
	e.publish(EventBumped, b, bump)
	e.broadcast(ctx, b.ID, bump)
	return nil
}

// Resubmit - operator replacement with fresh inputs
//
// the confirmation must be the hash of the live transaction, so the
// operator has looked at what is being replaced
func (e *Engine) Resubmit(ctx context.Context, bulletinID string, confirmation string) (*storage.Bump, error) {
	e.Lock()
	defer e.Unlock()

	b, err := e.store.GetBulletin(ctx, bulletinID)
	if nil != err {
		return nil, err
	}
	if storage.StateSubmitted != b.State {
		return nil, fault.ErrInvalidBulletinState
	}
	live, err := e.store.LiveBump(ctx, bulletinID)
	if nil != err {
		return nil, err
	}
	if confirmation != live.TransactionHash {
		return nil, fault.ErrConfirmationMismatch
	}

	d, err := e.commitment(ctx, b)
	if nil != err {
		return nil, err
	}
	utxos, err := e.node.ListUnspent(ctx, e.address)
	if nil != err {
		return nil, err
	}
	a, _, err := e.builder.Anchor(d, utxos, e.feeRate(ctx))
	if nil != err {
		return nil, err
	}

	bump := newBump(storage.BumpResubmit, a)
	if err := e.batcher.AddAttempt(ctx, bulletinID, bump); nil != err {
		return nil, err
	}
	e.publish(EventResubmitted, b, bump)
	if err := e.broadcast(ctx, bulletinID, bump); nil != err {
		return bump, err
	}
	return bump, nil
}

// Backfill - fill block details missing from published bulletins
//
// returns the number of bulletins updated
func (e *Engine) Backfill(ctx context.Context) (int, error) {
	list, err := e.store.MissingBlockTime(ctx)
	if nil != err {
		return 0, err
	}

	n := 0
	for i := range list {
		b := &list[i]
		block, err := e.locate(ctx, b)
		if nil != err {
			e.log.Warnf("backfill: bulletin: %s  error: %s", b.ID, err)
			continue
		}
		ok, err := e.store.FillBlockDetails(ctx, b.ID, block)
		if nil != err {
			e.log.Errorf("backfill: bulletin: %s  error: %s", b.ID, err)
			continue
		}
		if ok {
			e.log.Infof("backfill: bulletin: %s  block: %s", b.ID, block.Hash)
			n += 1
		}
	}
	return n, nil
}

func (e *Engine) locate(ctx context.Context, b *storage.Bulletin) (storage.Block, error) {
	blockHash := ""
	if nil != b.BlockHash {
		blockHash = *b.BlockHash
	} else {
		if nil == b.RawTransactionHash {
			return storage.Block{}, fault.ErrTransactionNotFound
		}
		status, err := e.node.GetTransaction(ctx, *b.RawTransactionHash)
		if nil != err {
			return storage.Block{}, err
		}
		if "" == status.BlockHash {
			return storage.Block{}, fault.ErrHeaderNotFound
		}
		blockHash = status.BlockHash
	}

	header, err := e.node.GetBlockHeader(ctx, blockHash)
	if nil != err {
		return storage.Block{}, err
	}
	return storage.Block{
		Hash:   header.Hash,
		Height: header.Height,
		Time:   header.Time,
	}, nil
}

func newBump(kind string, a *bitcoin.Anchor) *storage.Bump {
	return &storage.Bump{
		Kind:            kind,
		RawTransaction:  a.Raw,
		TransactionHash: a.Hash,
		InputValue:      a.InputValue,
		Fee:             a.Fee,
	}
}

// utxos less those spent
func without(utxos []bitcoin.UTXO, spent []bitcoin.UTXO) []bitcoin.UTXO {
	used := make(map[string]struct{}, len(spent))
	for _, u := range spent {
		used[outpoint(u)] = struct{}{}
	}
	remaining := make([]bitcoin.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if _, ok := used[outpoint(u)]; !ok {
			remaining = append(remaining, u)
		}
	}
	return remaining
}

func outpoint(u bitcoin.UTXO) string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}
