// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storagetest - throwaway stores and records for tests
package storagetest

import (
	"bytes"
	"context"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"

	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/signature"
	"github.com/bitmark-inc/bulletind/storage"
)

// Params - network used by all fixtures
var Params = &chaincfg.RegressionNetParams

// New - a migrated SQLite backed store removed at the end of the test
//
// transactions are serialised, see the connection limit below
func New(t testing.TB) *storage.Store {
	t.Helper()

	fileName := filepath.Join(t.TempDir(), "bulletind.sqlite")
	s, err := storage.OpenDialector(sqlite.Open(fileName + "?_pragma=busy_timeout(10000)&_pragma=foreign_keys(0)"))
	if nil != err {
		t.Fatalf("open store error: %s", err)
	}

	// SQLite allows one writer, so serialise on a single connection.
	// with one connection every transaction runs alone and the row
	// locks taken by LockDraft and LockBulletin are never contended,
	// so concurrency tests on this store cannot catch a missing lock.
	// bulletin/postgres_test.go covers that when
	// BULLETIND_TEST_POSTGRES_DSN is set
	sqlDB, err := s.DB().DB()
	if nil != err {
		t.Fatalf("sql handle error: %s", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := s.Migrate(); nil != err {
		t.Fatalf("migrate error: %s", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// Key - deterministic private key
func Key(seed byte) *btcec.PrivateKey {
	k, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return k
}

// Signer - a registered identity for an account
type Signer struct {
	Key       *btcec.PrivateKey
	Pubkey    *storage.Pubkey
	AccountID string
}

// NewSigner - register a pubkey for an account
func NewSigner(t testing.TB, s *storage.Store, accountID string, seed byte) *Signer {
	t.Helper()

	key := Key(seed)
	address, err := signature.Address(key.PubKey(), true, Params)
	if nil != err {
		t.Fatalf("address error: %s", err)
	}
	p := &storage.Pubkey{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Address:   address,
		PublicKey: hex.EncodeToString(key.PubKey().SerializeCompressed()),
	}
	if err := s.CreatePubkey(context.Background(), p); nil != err {
		t.Fatalf("create pubkey error: %s", err)
	}
	return &Signer{
		Key:       key,
		Pubkey:    p,
		AccountID: accountID,
	}
}

// Entry - a stored document with one part signed by signer
type Entry struct {
	Document  *storage.Document
	Part      *storage.DocumentPart
	Signature *storage.DocumentPartSignature
	Content   []byte
}

// NewEntry - store content as a single part document and sign it
func NewEntry(t testing.TB, s *storage.Store, signer *Signer, content []byte, status string) *Entry {
	t.Helper()
	ctx := context.Background()

	documentID := uuid.NewString()
	hash := digest.Hash(content)
	part := storage.DocumentPart{
		ID:           digest.PartID(documentID, hash, "body.txt", "text/plain", int64(len(content))),
		Hash:         hash,
		FriendlyName: "body.txt",
		ContentType:  "text/plain",
		Size:         int64(len(content)),
		IsBase:       true,
	}
	document := &storage.Document{
		ID:        documentID,
		AccountID: signer.AccountID,
		Title:     "test document",
		Parts:     []storage.DocumentPart{part},
	}
	if err := s.CreateDocument(ctx, document); nil != err {
		t.Fatalf("create document error: %s", err)
	}

	sig, err := signature.Sign([]byte(hash), signer.Key)
	if nil != err {
		t.Fatalf("sign error: %s", err)
	}
	entry := &storage.DocumentPartSignature{
		ID:             uuid.NewString(),
		DocumentPartID: part.ID,
		PubkeyID:       signer.Pubkey.ID,
		AccountID:      signer.AccountID,
		Signature:      sig,
		SignatureHash:  digest.Hash(sig),
		Status:         status,
	}
	stored, err := s.CreateSignature(ctx, entry)
	if nil != err {
		t.Fatalf("create signature error: %s", err)
	}
	return &Entry{
		Document:  document,
		Part:      &document.Parts[0],
		Signature: stored,
		Content:   content,
	}
}
