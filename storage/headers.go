// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/bitmark-inc/bulletind/fault"
)

// CheckpointKey - key of the last fully processed block
var CheckpointKey = []byte("checkpoint")

// Header - the parts of a block header the engine needs
type Header struct {
	Hash   chainhash.Hash
	Height int32
	Time   time.Time
}

// HeaderStore - block headers already fetched from the node
type HeaderStore struct {
	db  *leveldb.DB
	log *logger.L

	headers table
	state   table
}

// a prefixed key space inside the database
type table struct {
	prefix   byte
	database *leveldb.DB
}

// prepend the prefix onto the key
func (t table) prefixKey(key []byte) []byte {
	prefixedKey := make([]byte, 1, len(key)+1)
	prefixedKey[0] = t.prefix
	return append(prefixedKey, key...)
}

func (t table) put(key []byte, value []byte) error {
	if nil == t.database {
		return fault.ErrDatabaseIsNotSet
	}
	return t.database.Put(t.prefixKey(key), value, nil)
}

// returns nil if the key is absent
func (t table) get(key []byte) []byte {
	if nil == t.database {
		return nil
	}
	value, err := t.database.Get(t.prefixKey(key), nil)
	if nil != err {
		return nil
	}
	return value
}

// OpenHeaderStore - open or create the LevelDB directory
func OpenHeaderStore(directory string) (*HeaderStore, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if nil != err {
		return nil, err
	}
	return &HeaderStore{
		db:      db,
		log:     logger.New("headers"),
		headers: table{prefix: 'B', database: db},
		state:   table{prefix: 'C', database: db},
	}, nil
}

// Put - save a header, value is hex height ++ hex unix time
func (h *HeaderStore) Put(header *Header) error {
	value := fmt.Sprintf("%08x%016x", header.Height, header.Time.Unix())
	h.log.Tracef("put: %s  value: %s", header.Hash, value)
	return h.headers.put(header.Hash.CloneBytes(), []byte(value))
}

// Get - a saved header
func (h *HeaderStore) Get(hash *chainhash.Hash) (*Header, error) {
	if nil == hash {
		return nil, fault.ErrHashNotFound
	}
	value := h.headers.get(hash.CloneBytes())
	if 24 != len(value) {
		return nil, fault.ErrHeaderNotFound
	}
	height, err := strconv.ParseInt(string(value[:8]), 16, 32)
	if nil != err {
		return nil, err
	}
	unix, err := strconv.ParseInt(string(value[8:]), 16, 64)
	if nil != err {
		return nil, err
	}
	return &Header{
		Hash:   *hash,
		Height: int32(height),
		Time:   time.Unix(unix, 0).UTC(),
	}, nil
}

// SetCheckpoint - remember the last processed block
func (h *HeaderStore) SetCheckpoint(hash *chainhash.Hash) error {
	return h.state.put(CheckpointKey, hash.CloneBytes())
}

// GetCheckpoint - the last processed block
func (h *HeaderStore) GetCheckpoint() (*chainhash.Hash, error) {
	b := h.state.get(CheckpointKey)
	if nil == b {
		return nil, fault.ErrHashNotFound
	}
	return chainhash.NewHash(b)
}

// Close - close the database
func (h *HeaderStore) Close() error {
	return h.db.Close()
}
