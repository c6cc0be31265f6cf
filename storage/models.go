// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"time"
)

// bulletin states
const (
	StateDraft     = "draft"
	StateProposed  = "proposed"
	StateSubmitted = "submitted"
	StatePublished = "published"
)

// entry admission status
const (
	EntryParked = "parked"
	EntryFunded = "funded"
)

// kinds of transaction attempt
const (
	BumpBroadcast = "broadcast"
	BumpFee       = "fee_bump"
	BumpResubmit  = "resubmit"
)

type Document struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID string         `gorm:"type:varchar(64);index;not null" json:"account_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	Parts     []DocumentPart `gorm:"foreignKey:DocumentID" json:"parts,omitempty"`
}

// DocumentPart - immutable once stored
type DocumentPart struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DocumentID   string    `gorm:"type:varchar(36);index;not null" json:"document_id"`
	Hash         string    `gorm:"type:varchar(64);index;not null" json:"hash"`
	FriendlyName string    `json:"friendly_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	IsBase       bool      `json:"is_base"`
	CreatedAt    time.Time `json:"created_at"`
}

// Pubkey - a signer identity proven by a signature
type Pubkey struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_id"`
	Address   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"address"`
	PublicKey string    `gorm:"type:varchar(66);not null" json:"public_key"`
	Nonce     int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentPartSignature - an entry
type DocumentPartSignature struct {
	ID             string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DocumentPartID string       `gorm:"type:varchar(36);uniqueIndex:idx_part_signer;not null" json:"document_part_id"`
	PubkeyID       string       `gorm:"type:varchar(36);uniqueIndex:idx_part_signer;not null" json:"pubkey_id"`
	AccountID      string       `gorm:"type:varchar(64);index;not null" json:"account_id"`
	Signature      []byte       `gorm:"not null" json:"signature"`
	SignatureHash  string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"signature_hash"`
	Status         string       `gorm:"type:varchar(16);index;not null" json:"status"`
	BulletinID     *string      `gorm:"type:varchar(36);index" json:"bulletin_id"`
	FundedAt       *time.Time   `json:"funded_at"`
	CreatedAt      time.Time    `json:"created_at"`
	Pubkey         Pubkey       `gorm:"foreignKey:PubkeyID" json:"-"`
	DocumentPart   DocumentPart `gorm:"foreignKey:DocumentPartID" json:"-"`
}

// Bulletin - one blockchain commitment
//
// a single record with a state tag, fields are set as the state
// advances and never cleared
type Bulletin struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	State              string     `gorm:"type:varchar(16);not null" json:"state"`
	Hash               *string    `gorm:"type:varchar(64)" json:"hash"`
	EntryCount         int        `gorm:"not null;default:0" json:"entry_count"`
	RawTransaction     []byte     `json:"raw_transaction,omitempty"`
	RawTransactionHash *string    `gorm:"type:varchar(64);index" json:"raw_transaction_hash"`
	BlockHash          *string    `gorm:"type:varchar(64)" json:"block_hash"`
	BlockHeight        *int64     `json:"block_height"`
	BlockTime          *time.Time `json:"block_time"`
	StartedAt          time.Time  `json:"started_at"`
	ProposedAt         *time.Time `json:"proposed_at"`
	SubmittedAt        *time.Time `json:"submitted_at"`
	PublishedAt        *time.Time `json:"published_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Bump - one transaction attempt for a bulletin
type Bump struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BulletinID      string    `gorm:"type:varchar(36);uniqueIndex:idx_bulletin_counter;not null" json:"bulletin_id"`
	Counter         int       `gorm:"uniqueIndex:idx_bulletin_counter;not null" json:"counter"`
	Kind            string    `gorm:"type:varchar(16);not null" json:"kind"`
	RawTransaction  []byte    `gorm:"not null" json:"raw_transaction"`
	TransactionHash string    `gorm:"type:varchar(64);index;not null" json:"transaction_hash"`
	InputValue      int64     `json:"input_value"`
	Fee             int64     `json:"fee"`
	StartedAt       time.Time `json:"started_at"`
}

// Account - funding state of an account
type Account struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Credits       int64     `gorm:"not null;default:0" json:"credits"`
	TermsAccepted bool      `gorm:"not null;default:false" json:"terms_accepted"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// all tables for migration
var models = []interface{}{
	&Document{},
	&DocumentPart{},
	&Pubkey{},
	&DocumentPartSignature{},
	&Bulletin{},
	&Bump{},
	&Account{},
}
