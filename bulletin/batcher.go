// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bulletin - batching of entries into bulletins
//
//	draft ──propose──▶ proposed ──submit──▶ submitted ──publish──▶ published
//
// There is at most one draft. Entries are only ever attached to the
// draft, and the attachment is made under row locks in the store so
// that any number of processes may attach concurrently.
package bulletin

import (
	"context"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/storage"
)

// retries when the draft is promoted under an attaching caller
const maximumDraftAttempts = 8

// Batcher - the bulletin state machine
type Batcher struct {
	sync.RWMutex

	store  *storage.Store
	log    *logger.L
	policy Policy

	// for tests
	now func() time.Time
}

// New - create a batcher over a store
func New(store *storage.Store, policy Policy) *Batcher {
	return &Batcher{
		store:  store,
		log:    logger.New("bulletin"),
		policy: policy,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetClock - replace the time source
func (b *Batcher) SetClock(now func() time.Time) {
	b.Lock()
	b.now = now
	b.Unlock()
}

func (b *Batcher) clock() time.Time {
	b.RLock()
	defer b.RUnlock()
	return b.now()
}

// SetPolicy - replace the promotion policy
func (b *Batcher) SetPolicy(policy Policy) {
	b.Lock()
	b.policy = policy
	b.Unlock()
	b.log.Infof("promotion policy: %s", policy)
}

// Policy - the current promotion policy
func (b *Batcher) Policy() Policy {
	b.RLock()
	defer b.RUnlock()
	return b.policy
}

// Attach - put a funded entry into the draft bulletin
//
// the draft is created if none exists; an entry that is already
// attached returns the bulletin it belongs to
func (b *Batcher) Attach(ctx context.Context, entryID string) (*storage.Bulletin, error) {
	for attempt := 0; attempt < maximumDraftAttempts; attempt += 1 {
		var attached *storage.Bulletin

		err := b.store.Transaction(ctx, func(tx *storage.Store) error {
			entry, err := tx.LockEntry(ctx, entryID)
			if nil != err {
				return err
			}
			if nil != entry.BulletinID {
				attached, err = tx.GetBulletin(ctx, *entry.BulletinID)
				return err
			}
			if storage.EntryFunded != entry.Status {
				return fault.ErrEntryNotFunded
			}

			if err := tx.EnsureDraft(ctx, b.clock()); nil != err {
				return err
			}
			draft, err := tx.LockDraft(ctx)
			if nil != err {
				return err
			}

			ok, err := tx.LinkEntry(ctx, entryID, draft.ID)
			if nil != err {
				return err
			}
			if !ok {
				return fault.ErrEntryAttached
			}
			draft.EntryCount += 1
			attached = draft
			return nil
		})

		if fault.ErrNoDraft == err {
			b.log.Debugf("attach: %s  draft promoted, retry: %d", entryID, attempt)
			continue
		}
		if nil != err {
			return nil, err
		}
		b.log.Debugf("attach: %s  bulletin: %s", entryID, attached.ID)
		return attached, nil
	}
	return nil, fault.ErrDraftContention
}

// Propose - freeze the draft and compute its digest
//
// unless forced the policy must consider the draft due; returns nil
// when nothing was proposed, an empty draft is never proposed
func (b *Batcher) Propose(ctx context.Context, force bool) (*storage.Bulletin, error) {
	var proposed *storage.Bulletin

	err := b.store.Transaction(ctx, func(tx *storage.Store) error {
		draft, err := tx.LockDraft(ctx)
		if fault.ErrNoDraft == err {
			return nil
		}
		if nil != err {
			return err
		}

		now := b.clock()
		if !force && !b.Policy().Due(draft, now) {
			return nil
		}

		hashes, err := tx.EntryHashes(ctx, draft.ID)
		if nil != err {
			return err
		}
		if 0 == len(hashes) {
			return nil
		}

		d := digest.Bulletin(hashes)
		if err := tx.FreezeDraft(ctx, draft.ID, d, len(hashes), now); nil != err {
			return err
		}
		proposed, err = tx.GetBulletin(ctx, draft.ID)
		return err
	})
	if nil != err {
		return nil, err
	}
	if nil != proposed {
		b.log.Infof("proposed: %s  entries: %d  digest: %s", proposed.ID, proposed.EntryCount, *proposed.Hash)
	}
	return proposed, nil
}

// MarkSubmitted - record the first broadcast transaction
func (b *Batcher) MarkSubmitted(ctx context.Context, bulletinID string, bump *storage.Bump) error {
	err := b.store.RecordSubmission(ctx, bulletinID, bump, b.clock())
	if nil != err {
		return err
	}
	b.log.Infof("submitted: %s  tx: %s", bulletinID, bump.TransactionHash)
	return nil
}

// AddAttempt - record a replacement or resubmitted transaction
func (b *Batcher) AddAttempt(ctx context.Context, bulletinID string, bump *storage.Bump) error {
	err := b.store.RecordBump(ctx, bulletinID, bump, b.clock())
	if nil != err {
		return err
	}
	b.log.Infof("%s: %s  counter: %d  tx: %s", bump.Kind, bulletinID, bump.Counter, bump.TransactionHash)
	return nil
}

// Publish - the transaction of an attempt is deep enough in the chain
//
// this is final, a published bulletin never changes state again
func (b *Batcher) Publish(ctx context.Context, bulletinID string, bump *storage.Bump, block storage.Block) error {
	current, err := b.store.GetBulletin(ctx, bulletinID)
	if nil != err {
		return err
	}
	if storage.StatePublished == current.State {
		return fault.ErrAlreadyPublished
	}
	err = b.store.RecordPublication(ctx, bulletinID, bump, block, b.clock())
	if nil != err {
		return err
	}
	b.log.Infof("published: %s  tx: %s  block: %s", bulletinID, bump.TransactionHash, block.Hash)
	return nil
}

// Payload - canonical text and digest recomputed from stored entries
func (b *Batcher) Payload(ctx context.Context, bulletinID string) (string, string, error) {
	hashes, err := b.store.EntryHashes(ctx, bulletinID)
	if nil != err {
		return "", "", err
	}
	return digest.Payload(hashes), digest.Bulletin(hashes), nil
}
