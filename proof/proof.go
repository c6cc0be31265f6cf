// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package proof - independently checkable evidence that a document
// was signed before the block that anchors it
//
// the chain of evidence is
//
//	content → part hash → signature → entry hash → bulletin digest → transaction → block
//
// a Proof holds only public data so that Verify needs neither the
// service nor any private key
package proof

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/storage"
)

// Version - of the proof format
const Version = 1

// Part - a signed piece of the document
type Part struct {
	ID           string `json:"id"`
	Hash         string `json:"hash"`
	FriendlyName string `json:"friendly_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	IsBase       bool   `json:"is_base"`
}

// Signature - one entry
type Signature struct {
	EntryID       string `json:"entry_id"`
	PartID        string `json:"part_id"`
	PartHash      string `json:"part_hash"`
	Signer        string `json:"signer"`
	PublicKey     string `json:"public_key"`
	Signature     []byte `json:"signature"`
	SignatureHash string `json:"signature_hash"`
	BulletinID    string `json:"bulletin_id"`
}

// Bulletin - a published bulletin with every entry it committed
type Bulletin struct {
	ID              string    `json:"id"`
	Digest          string    `json:"digest"`
	Entries         []string  `json:"entries"`
	TransactionHash string    `json:"transaction_hash"`
	RawTransaction  string    `json:"raw_transaction"`
	BlockHash       string    `json:"block_hash"`
	BlockHeight     int64     `json:"block_height"`
	BlockTime       time.Time `json:"block_time"`
}

// Proof - the artifact for one document
type Proof struct {
	Version    int         `json:"version"`
	Chain      string      `json:"chain"`
	DocumentID string      `json:"document_id"`
	Title      string      `json:"title"`
	Parts      []Part      `json:"parts"`
	Signatures []Signature `json:"signatures"`
	Bulletins  []Bulletin  `json:"bulletins"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Builder - assembles proofs from the store
type Builder struct {
	store  *storage.Store
	params *chaincfg.Params
	log    *logger.L
}

// NewBuilder - params name the network of the signer addresses
func NewBuilder(store *storage.Store, params *chaincfg.Params) *Builder {
	return &Builder{
		store:  store,
		params: params,
		log:    logger.New("proof"),
	}
}

// Build - the proof of a document
//
// a fault.NotYetError names the first bulletin that is not yet
// published; an unsigned document cannot be proved
func (b *Builder) Build(ctx context.Context, documentID string) (*Proof, error) {
	document, err := b.store.GetDocument(ctx, documentID)
	if nil != err {
		return nil, err
	}
	entries, err := b.store.DocumentSignatures(ctx, documentID)
	if nil != err {
		return nil, err
	}
	if 0 == len(entries) {
		return nil, fault.ErrEntryNotFound
	}

	p := &Proof{
		Version:    Version,
		Chain:      chain.Name(b.params),
		DocumentID: document.ID,
		Title:      document.Title,
		Parts:      make([]Part, 0, len(document.Parts)),
		Signatures: make([]Signature, 0, len(entries)),
		CreatedAt:  time.Now().UTC(),
	}
	for _, part := range document.Parts {
		p.Parts = append(p.Parts, Part{
			ID:           part.ID,
			Hash:         part.Hash,
			FriendlyName: part.FriendlyName,
			ContentType:  part.ContentType,
			Size:         part.Size,
			IsBase:       part.IsBase,
		})
	}

	seen := make(map[string]struct{})
	for _, entry := range entries {
		if nil == entry.BulletinID {
			return nil, fault.NotYet("", "")
		}
		bulletinID := *entry.BulletinID

		p.Signatures = append(p.Signatures, Signature{
			EntryID:       entry.ID,
			PartID:        entry.DocumentPartID,
			PartHash:      entry.DocumentPart.Hash,
			Signer:        entry.Pubkey.Address,
			PublicKey:     entry.Pubkey.PublicKey,
			Signature:     entry.Signature,
			SignatureHash: entry.SignatureHash,
			BulletinID:    bulletinID,
		})

		if _, ok := seen[bulletinID]; ok {
			continue
		}
		seen[bulletinID] = struct{}{}

		item, err := b.bulletin(ctx, bulletinID)
		if nil != err {
			return nil, err
		}
		p.Bulletins = append(p.Bulletins, *item)
	}

	b.log.Debugf("build: document: %s  signatures: %d  bulletins: %d", documentID, len(p.Signatures), len(p.Bulletins))
	return p, nil
}

func (b *Builder) bulletin(ctx context.Context, id string) (*Bulletin, error) {
	record, err := b.store.GetBulletin(ctx, id)
	if nil != err {
		return nil, err
	}
	if storage.StatePublished != record.State {
		return nil, fault.NotYet(record.ID, record.State)
	}
	hashes, err := b.store.EntryHashes(ctx, id)
	if nil != err {
		return nil, err
	}

	item := &Bulletin{
		ID:             record.ID,
		Entries:        hashes,
		RawTransaction: hex.EncodeToString(record.RawTransaction),
	}
	if nil != record.Hash {
		item.Digest = *record.Hash
	}
	if nil != record.RawTransactionHash {
		item.TransactionHash = *record.RawTransactionHash
	}
	if nil != record.BlockHash {
		item.BlockHash = *record.BlockHash
	}
	if nil != record.BlockHeight {
		item.BlockHeight = *record.BlockHeight
	}
	if nil != record.BlockTime {
		item.BlockTime = record.BlockTime.UTC()
	}
	return item, nil
}
