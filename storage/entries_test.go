// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/storage"
	"github.com/bitmark-inc/bulletind/storage/storagetest"
)

func TestDocumentIsIdempotent(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	signer := storagetest.NewSigner(t, s, "account-1", 1)
	e := storagetest.NewEntry(t, s, signer, []byte("hello"), storage.EntryParked)

	again := &storage.Document{
		ID:        e.Document.ID,
		AccountID: "someone else",
		Parts:     []storage.DocumentPart{*e.Part},
	}
	require.NoError(t, s.CreateDocument(ctx, again))

	d, err := s.GetDocument(ctx, e.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, "account-1", d.AccountID)
	require.Len(t, d.Parts, 1)
	assert.Equal(t, e.Part.Hash, d.Parts[0].Hash)

	_, err = s.GetDocument(ctx, "missing")
	assert.Equal(t, fault.ErrDocumentNotFound, err)
}

func TestPubkeyOwnership(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	signer := storagetest.NewSigner(t, s, "account-1", 1)

	sameAddress := &storage.Pubkey{ID: uuid.NewString(), AccountID: "account-2", Address: signer.Pubkey.Address, PublicKey: "00"}
	assert.True(t, fault.IsErrExists(s.CreatePubkey(ctx, sameAddress)))

	sameAccount := &storage.Pubkey{ID: uuid.NewString(), AccountID: "account-1", Address: "other", PublicKey: "00"}
	assert.True(t, fault.IsErrExists(s.CreatePubkey(ctx, sameAccount)))

	p, err := s.PubkeyByAddress(ctx, signer.Pubkey.Address)
	require.NoError(t, err)
	assert.Equal(t, signer.Pubkey.ID, p.ID)
}

func TestNonceOnlyAdvances(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	signer := storagetest.NewSigner(t, s, "account-1", 1)

	ok, err := s.AdvanceNonce(ctx, signer.Pubkey.ID, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, n := range []int64{10, 9, 0} {
		ok, err = s.AdvanceNonce(ctx, signer.Pubkey.ID, n)
		require.NoError(t, err)
		assert.False(t, ok, "nonce %d replayed", n)
	}

	ok, err = s.AdvanceNonce(ctx, signer.Pubkey.ID, 11)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignatureIsIdempotent(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	signer := storagetest.NewSigner(t, s, "account-1", 1)
	e := storagetest.NewEntry(t, s, signer, []byte("hello"), storage.EntryParked)

	duplicate := *e.Signature
	duplicate.ID = uuid.NewString()
	stored, err := s.CreateSignature(ctx, &duplicate)
	require.NoError(t, err)
	assert.Equal(t, e.Signature.ID, stored.ID)
}

func TestFunding(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	signer := storagetest.NewSigner(t, s, "account-1", 1)
	e1 := storagetest.NewEntry(t, s, signer, []byte("one"), storage.EntryParked)
	e2 := storagetest.NewEntry(t, s, signer, []byte("two"), storage.EntryParked)

	parked, err := s.ParkedEntries(ctx, "account-1")
	require.NoError(t, err)
	assert.Len(t, parked, 2)

	n, err := s.FundEntries(ctx, []string{e1.Signature.ID}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.FundEntries(ctx, []string{e1.Signature.ID, e2.Signature.ID}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "already funded entry counted again")

	count, err := s.FundedCount(ctx, "account-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	pending, err := s.UnattachedFunded(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestAccounts(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	a, err := s.GetAccount(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), a.Credits)
	assert.False(t, a.TermsAccepted)

	require.NoError(t, s.GrantCredits(ctx, "acc", 3))
	require.NoError(t, s.GrantCredits(ctx, "acc", 2))
	require.NoError(t, s.AcceptTerms(ctx, "acc"))

	a, err = s.GetAccount(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.Credits)
	assert.True(t, a.TermsAccepted)
}

func TestDocumentSignatures(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	signer := storagetest.NewSigner(t, s, "account-1", 1)
	e := storagetest.NewEntry(t, s, signer, []byte("hello"), storage.EntryParked)
	storagetest.NewEntry(t, s, signer, []byte("unrelated"), storage.EntryParked)

	list, err := s.DocumentSignatures(ctx, e.Document.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, signer.Pubkey.Address, list[0].Pubkey.Address)
	assert.Equal(t, e.Part.Hash, list[0].DocumentPart.Hash)
}
