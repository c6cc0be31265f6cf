// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitmark-inc/bulletind/fault"
)

var forUpdate = clause.Locking{Strength: "UPDATE"}

// EnsureDraft - create the draft bulletin unless one already exists
func (s *Store) EnsureDraft(ctx context.Context, now time.Time) error {
	draft := Bulletin{
		ID:        uuid.NewString(),
		State:     StateDraft,
		StartedAt: now,
	}
	return s.with(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&draft).Error
}

// LockDraft - the draft bulletin, row locked until the transaction ends
func (s *Store) LockDraft(ctx context.Context) (*Bulletin, error) {
	var b Bulletin
	err := s.with(ctx).Clauses(forUpdate).Where("state = ?", StateDraft).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrNoDraft
	}
	if nil != err {
		return nil, err
	}
	return &b, nil
}

// Draft - the draft bulletin without locking
func (s *Store) Draft(ctx context.Context) (*Bulletin, error) {
	var b Bulletin
	err := s.with(ctx).Where("state = ?", StateDraft).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrNoDraft
	}
	if nil != err {
		return nil, err
	}
	return &b, nil
}

// LinkEntry - attach an unattached entry, false if it was already attached
func (s *Store) LinkEntry(ctx context.Context, entryID string, bulletinID string) (bool, error) {
	result := s.with(ctx).Model(&DocumentPartSignature{}).
		Where("id = ? AND bulletin_id IS NULL AND status = ?", entryID, EntryFunded).
		Update("bulletin_id", bulletinID)
	if nil != result.Error {
		return false, result.Error
	}
	if 0 == result.RowsAffected {
		return false, nil
	}
	err := s.with(ctx).Model(&Bulletin{}).
		Where("id = ? AND state = ?", bulletinID, StateDraft).
		UpdateColumn("entry_count", gorm.Expr("entry_count + 1")).Error
	return true, err
}

// EntryHashes - signature hashes of all entries attached to a bulletin
func (s *Store) EntryHashes(ctx context.Context, bulletinID string) ([]string, error) {
	var hashes []string
	err := s.with(ctx).Model(&DocumentPartSignature{}).
		Where("bulletin_id = ?", bulletinID).
		Order("signature_hash").
		Pluck("signature_hash", &hashes).Error
	return hashes, err
}

// FreezeDraft - draft → proposed with its digest
func (s *Store) FreezeDraft(ctx context.Context, bulletinID string, hash string, entryCount int, now time.Time) error {
	result := s.with(ctx).Model(&Bulletin{}).
		Where("id = ? AND state = ?", bulletinID, StateDraft).
		Updates(map[string]interface{}{
			"state":       StateProposed,
			"hash":        hash,
			"entry_count": entryCount,
			"proposed_at": now,
		})
	if nil != result.Error {
		return result.Error
	}
	if 1 != result.RowsAffected {
		return fault.ErrInvalidBulletinState
	}
	return nil
}

// GetBulletin - one bulletin by id
func (s *Store) GetBulletin(ctx context.Context, id string) (*Bulletin, error) {
	var b Bulletin
	err := s.with(ctx).Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrBulletinNotFound
	}
	if nil != err {
		return nil, err
	}
	return &b, nil
}

// LockBulletin - one bulletin, row locked until the transaction ends
func (s *Store) LockBulletin(ctx context.Context, id string) (*Bulletin, error) {
	var b Bulletin
	err := s.with(ctx).Clauses(forUpdate).Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrBulletinNotFound
	}
	if nil != err {
		return nil, err
	}
	return &b, nil
}

// BulletinsInState - oldest first
func (s *Store) BulletinsInState(ctx context.Context, state string) ([]Bulletin, error) {
	var list []Bulletin
	err := s.with(ctx).Where("state = ?", state).Order("started_at, id").Find(&list).Error
	return list, err
}

// RecordSubmission - proposed → submitted with the first attempt
//
// the state change and the attempt commit together or not at all
func (s *Store) RecordSubmission(ctx context.Context, bulletinID string, bump *Bump, now time.Time) error {
	return s.Transaction(ctx, func(tx *Store) error {
		b, err := tx.LockBulletin(ctx, bulletinID)
		if nil != err {
			return err
		}
		if StateProposed != b.State {
			return fault.ErrInvalidBulletinState
		}

		bump.ID = 0
		bump.BulletinID = bulletinID
		bump.Counter = 0
		bump.StartedAt = now

		err = tx.with(ctx).Model(&Bulletin{}).
			Where("id = ?", bulletinID).
			Updates(map[string]interface{}{
				"state":                StateSubmitted,
				"raw_transaction":      bump.RawTransaction,
				"raw_transaction_hash": bump.TransactionHash,
				"submitted_at":         now,
			}).Error
		if nil != err {
			return err
		}
		return tx.with(ctx).Create(bump).Error
	})
}

// RecordBump - a further attempt for a submitted bulletin, becomes live
//
// the counter is taken under the bulletin row lock so concurrent
// recorders are serialised
func (s *Store) RecordBump(ctx context.Context, bulletinID string, bump *Bump, now time.Time) error {
	return s.Transaction(ctx, func(tx *Store) error {
		b, err := tx.LockBulletin(ctx, bulletinID)
		if nil != err {
			return err
		}
		if StateSubmitted != b.State {
			return fault.ErrInvalidBulletinState
		}
		live, err := tx.LiveBump(ctx, bulletinID)
		if nil != err {
			return err
		}

		bump.ID = 0
		bump.BulletinID = bulletinID
		bump.Counter = live.Counter + 1
		bump.StartedAt = now

		err = tx.with(ctx).Model(&Bulletin{}).
			Where("id = ?", bulletinID).
			Updates(map[string]interface{}{
				"raw_transaction":      bump.RawTransaction,
				"raw_transaction_hash": bump.TransactionHash,
			}).Error
		if nil != err {
			return err
		}
		return tx.with(ctx).Create(bump).Error
	})
}

// LiveBump - the most recent attempt
func (s *Store) LiveBump(ctx context.Context, bulletinID string) (*Bump, error) {
	var b Bump
	err := s.with(ctx).Where("bulletin_id = ?", bulletinID).Order("counter DESC").Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrTransactionNotFound
	}
	if nil != err {
		return nil, err
	}
	return &b, nil
}

// Bumps - every attempt, most recent first
func (s *Store) Bumps(ctx context.Context, bulletinID string) ([]Bump, error) {
	var list []Bump
	err := s.with(ctx).Where("bulletin_id = ?", bulletinID).Order("counter DESC").Find(&list).Error
	return list, err
}

// Block - where a transaction was confirmed
type Block struct {
	Hash   string
	Height int64
	Time   time.Time
}

// RecordPublication - submitted → published by the attempt that was mined
func (s *Store) RecordPublication(ctx context.Context, bulletinID string, bump *Bump, block Block, now time.Time) error {
	result := s.with(ctx).Model(&Bulletin{}).
		Where("id = ? AND state = ?", bulletinID, StateSubmitted).
		Updates(map[string]interface{}{
			"state":                StatePublished,
			"raw_transaction":      bump.RawTransaction,
			"raw_transaction_hash": bump.TransactionHash,
			"block_hash":           block.Hash,
			"block_height":         block.Height,
			"block_time":           block.Time.UTC(),
			"published_at":         now,
		})
	if nil != result.Error {
		return result.Error
	}
	if 1 != result.RowsAffected {
		return fault.ErrInvalidBulletinState
	}
	return nil
}

// MissingBlockTime - published bulletins lacking block details
func (s *Store) MissingBlockTime(ctx context.Context) ([]Bulletin, error) {
	var list []Bulletin
	err := s.with(ctx).
		Where("state = ? AND (block_time IS NULL OR block_hash IS NULL)", StatePublished).
		Order("started_at, id").
		Find(&list).Error
	return list, err
}

// FillBlockDetails - set block details only where they are missing
func (s *Store) FillBlockDetails(ctx context.Context, bulletinID string, block Block) (bool, error) {
	updates := map[string]interface{}{
		"block_hash": gorm.Expr("COALESCE(block_hash, ?)", block.Hash),
		"block_time": gorm.Expr("COALESCE(block_time, ?)", block.Time.UTC()),
	}
	if 0 != block.Height {
		updates["block_height"] = gorm.Expr("COALESCE(block_height, ?)", block.Height)
	}
	result := s.with(ctx).Model(&Bulletin{}).
		Where("id = ? AND state = ? AND (block_time IS NULL OR block_hash IS NULL)", bulletinID, StatePublished).
		Updates(updates)
	return 1 == result.RowsAffected, result.Error
}
