// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitmark-inc/bulletind/fault"
)

// CreateDocument - store a document and its parts
//
// parts already present with the same identifier are left untouched
func (s *Store) CreateDocument(ctx context.Context, document *Document) error {
	return s.with(ctx).Transaction(func(tx *gorm.DB) error {
		parts := document.Parts
		document.Parts = nil
		defer func() {
			document.Parts = parts
		}()

		err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(document).Error
		if nil != err {
			return err
		}
		for i := range parts {
			parts[i].DocumentID = document.ID
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&parts[i]).Error
			if nil != err {
				return err
			}
		}
		return nil
	})
}

// GetDocument - a document with its parts
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	err := s.with(ctx).Preload("Parts", func(db *gorm.DB) *gorm.DB {
		return db.Order("is_base DESC, id")
	}).Where("id = ?", id).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrDocumentNotFound
	}
	if nil != err {
		return nil, err
	}
	return &d, nil
}

// GetPart - one document part
func (s *Store) GetPart(ctx context.Context, id string) (*DocumentPart, error) {
	var p DocumentPart
	err := s.with(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrDocumentNotFound
	}
	if nil != err {
		return nil, err
	}
	return &p, nil
}

// CreatePubkey - register a proven identity
func (s *Store) CreatePubkey(ctx context.Context, pubkey *Pubkey) error {
	return s.with(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&Pubkey{}).
			Where("address = ? OR account_id = ?", pubkey.Address, pubkey.AccountID).
			Count(&count).Error
		if nil != err {
			return err
		}
		if count > 0 {
			return fault.ExistsError("pubkey already registered")
		}
		err = tx.Create(pubkey).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fault.ExistsError("pubkey already registered")
		}
		return err
	})
}

// PubkeyByAddress - the identity owning an address
func (s *Store) PubkeyByAddress(ctx context.Context, address string) (*Pubkey, error) {
	var p Pubkey
	err := s.with(ctx).Where("address = ?", address).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrPubkeyNotFound
	}
	if nil != err {
		return nil, err
	}
	return &p, nil
}

// AdvanceNonce - record a request nonce, false if it is not newer
// than the last one seen
func (s *Store) AdvanceNonce(ctx context.Context, pubkeyID string, nonce int64) (bool, error) {
	result := s.with(ctx).Model(&Pubkey{}).
		Where("id = ? AND nonce < ?", pubkeyID, nonce).
		UpdateColumn("nonce", nonce)
	return 1 == result.RowsAffected, result.Error
}

// CreateSignature - store a new entry
//
// an identical signature already stored is returned instead
func (s *Store) CreateSignature(ctx context.Context, entry *DocumentPartSignature) (*DocumentPartSignature, error) {
	err := s.with(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
	if nil != err {
		return nil, err
	}
	var stored DocumentPartSignature
	err = s.with(ctx).Where("signature_hash = ?", entry.SignatureHash).Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// same part and signer with a different signature
		return nil, fault.ErrEntryAttached
	}
	if nil != err {
		return nil, err
	}
	return &stored, nil
}

// GetEntry - one entry
func (s *Store) GetEntry(ctx context.Context, id string) (*DocumentPartSignature, error) {
	var e DocumentPartSignature
	err := s.with(ctx).Where("id = ?", id).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrEntryNotFound
	}
	if nil != err {
		return nil, err
	}
	return &e, nil
}

// LockEntry - one entry, row locked until the transaction ends
func (s *Store) LockEntry(ctx context.Context, id string) (*DocumentPartSignature, error) {
	var e DocumentPartSignature
	err := s.with(ctx).Clauses(forUpdate).Where("id = ?", id).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.ErrEntryNotFound
	}
	if nil != err {
		return nil, err
	}
	return &e, nil
}

// ParkedEntries - entries of an account waiting for funding, oldest first
func (s *Store) ParkedEntries(ctx context.Context, accountID string) ([]DocumentPartSignature, error) {
	var list []DocumentPartSignature
	err := s.with(ctx).
		Where("account_id = ? AND status = ?", accountID, EntryParked).
		Order("created_at, id").
		Find(&list).Error
	return list, err
}

// FundEntries - parked → funded, returns the number changed
func (s *Store) FundEntries(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if 0 == len(ids) {
		return 0, nil
	}
	result := s.with(ctx).Model(&DocumentPartSignature{}).
		Where("id IN ? AND status = ?", ids, EntryParked).
		Updates(map[string]interface{}{
			"status":    EntryFunded,
			"funded_at": now,
		})
	return result.RowsAffected, result.Error
}

// UnattachedFunded - funded entries not yet in any bulletin
func (s *Store) UnattachedFunded(ctx context.Context, limit int) ([]DocumentPartSignature, error) {
	var list []DocumentPartSignature
	err := s.with(ctx).
		Where("status = ? AND bulletin_id IS NULL", EntryFunded).
		Order("funded_at, id").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// DocumentSignatures - every entry over any part of a document, with signer
func (s *Store) DocumentSignatures(ctx context.Context, documentID string) ([]DocumentPartSignature, error) {
	var list []DocumentPartSignature
	err := s.with(ctx).
		Preload("Pubkey").
		Preload("DocumentPart").
		Joins("JOIN document_parts ON document_parts.id = document_part_signatures.document_part_id").
		Where("document_parts.document_id = ?", documentID).
		Order("document_part_signatures.created_at, document_part_signatures.id").
		Find(&list).Error
	return list, err
}

// FundedCount - entries of an account already funded
func (s *Store) FundedCount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := s.with(ctx).Model(&DocumentPartSignature{}).
		Where("account_id = ? AND status = ?", accountID, EntryFunded).
		Count(&count).Error
	return count, err
}

// GetAccount - funding state, a zero account if none recorded
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := s.with(ctx).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Account{ID: id}, nil
	}
	if nil != err {
		return nil, err
	}
	return &a, nil
}

// GrantCredits - add credits to an account
func (s *Store) GrantCredits(ctx context.Context, id string, credits int64) error {
	a := Account{
		ID:      id,
		Credits: credits,
	}
	return s.with(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"credits":    gorm.Expr("accounts.credits + ?", credits),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&a).Error
}

// AcceptTerms - record terms acceptance for an account
func (s *Store) AcceptTerms(ctx context.Context, id string) error {
	a := Account{
		ID:            id,
		TermsAccepted: true,
	}
	return s.with(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"terms_accepted", "updated_at"}),
	}).Create(&a).Error
}
