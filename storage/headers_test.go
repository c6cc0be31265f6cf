// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/storage"
)

func TestHeaderStore(t *testing.T) {
	store, err := storage.OpenHeaderStore(filepath.Join(t.TempDir(), "headers.leveldb"))
	if nil != err {
		t.Fatalf("open error: %s", err)
	}
	defer store.Close()

	hash, err := chainhash.NewHashFromStr("e18646bc3f9644422510b2ca54eb022c087896111e3ed93121456a384a411afc")
	if nil != err {
		t.Fatalf("unable create hash: %s", err)
	}

	if _, err := store.Get(hash); err != fault.ErrHeaderNotFound {
		t.Fatalf("unexpected error: %v", err)
	}

	blockTime := time.Unix(1585000000, 0).UTC()
	if err := store.Put(&storage.Header{Hash: *hash, Height: 101, Time: blockTime}); nil != err {
		t.Fatalf("put error: %s", err)
	}

	h, err := store.Get(hash)
	if nil != err {
		t.Fatalf("get error: %s", err)
	}
	if 101 != h.Height {
		t.Errorf("height mis-match. expected: 101  actual: %d", h.Height)
	}
	if !blockTime.Equal(h.Time) {
		t.Errorf("time mis-match. expected: %s  actual: %s", blockTime, h.Time)
	}
}

func TestHeaderCheckpoint(t *testing.T) {
	store, err := storage.OpenHeaderStore(filepath.Join(t.TempDir(), "headers.leveldb"))
	if nil != err {
		t.Fatalf("open error: %s", err)
	}
	defer store.Close()

	if _, err := store.GetCheckpoint(); err != fault.ErrHashNotFound {
		t.Fatalf("unexpected error: %v", err)
	}

	hash, _ := chainhash.NewHashFromStr("5158ab88474fa3b35c379a756a86e473236ddb92799f035b4c9df6c113003586")
	if err := store.SetCheckpoint(hash); nil != err {
		t.Fatalf("set checkpoint error: %s", err)
	}
	actual, err := store.GetCheckpoint()
	if nil != err {
		t.Fatalf("get checkpoint error: %s", err)
	}
	if !actual.IsEqual(hash) {
		t.Fatalf("checkpoint mis-match. expected: %s  actual: %s", hash, actual)
	}
}
