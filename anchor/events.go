// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import (
	"time"

	"github.com/bitmark-inc/bulletind/storage"
)

// event kinds
const (
	EventProposed    = "proposed"
	EventSubmitted   = "submitted"
	EventBumped      = "bumped"
	EventResubmitted = "resubmitted"
	EventPublished   = "published"
)

// Event - payload of a bulletin lifecycle event
type Event struct {
	BulletinID      string    `json:"bulletin_id"`
	Digest          string    `json:"digest"`
	EntryCount      int       `json:"entry_count"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	Counter         int       `json:"counter"`
	BlockHash       string    `json:"block_hash,omitempty"`
	BlockHeight     int64     `json:"block_height,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e *Engine) publish(kind string, b *storage.Bulletin, bump *storage.Bump) {
	if nil == e.events {
		return
	}
	event := Event{
		BulletinID: b.ID,
		EntryCount: b.EntryCount,
		Timestamp:  e.now(),
	}
	if nil != b.Hash {
		event.Digest = *b.Hash
	}
	if nil != bump {
		event.TransactionHash = bump.TransactionHash
		event.Counter = bump.Counter
	}
	if nil != b.BlockHash {
		event.BlockHash = *b.BlockHash
	}
	if nil != b.BlockHeight {
		event.BlockHeight = *b.BlockHeight
	}
	e.events.Publish(kind, event)
}
