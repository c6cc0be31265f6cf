// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoin

import (
	"context"
	"time"
)

// UTXO - a spendable output of the service address
type UTXO struct {
	TxID          string
	Vout          uint32
	Amount        int64 // satoshi
	ScriptPubKey  []byte
	Confirmations int64
}

// TxStatus - what the node knows about a transaction
type TxStatus struct {
	Hash          string
	Confirmations int64
	BlockHash     string // empty while unconfirmed
	BlockTime     time.Time
	Raw           []byte
}

// BlockHeader - the parts of a header that are recorded
type BlockHeader struct {
	Hash   string
	Height int64
	Time   time.Time
}

// Node - the bitcoin node as used by the anchoring engine
//
//go:generate mockgen -source=node.go -destination=mocks/node.go -package=mocks
type Node interface {
	// outputs with at least one confirmation
	ListUnspent(ctx context.Context, address string) ([]UTXO, error)

	// returns the transaction id
	SendRawTransaction(ctx context.Context, raw []byte) (string, error)

	// fault.ErrTransactionNotFound if the node does not know it
	GetTransaction(ctx context.Context, txID string) (*TxStatus, error)

	// fault.ErrHeaderNotFound if the node does not know it
	GetBlockHeader(ctx context.Context, blockHash string) (*BlockHeader, error)

	// satoshi per 1000 virtual bytes, zero if no estimate is available
	EstimateFeeRate(ctx context.Context, blocks int) (int64, error)

	BlockCount(ctx context.Context) (int64, error)
}
