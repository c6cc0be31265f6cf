// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoin

import (
	"bytes"
	"encoding/hex"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/keyring"
)

const (
	// outputs below this are not relayed
	DustLimit = 546

	// BIP-125 replaceable, below the final sequence and its predecessor
	ReplaceableSequence = wire.MaxTxInSequenceNum - 2

	// minimum fee increase per 1000 bytes for a replacement
	IncrementalRelayFee = 1000

	transactionVersion = 2

	// upper bounds of serialised sizes for P2PKH with a compressed key
	baseSize       = 10
	inputSize      = 149
	changeSize     = 34
	commitmentSize = 8 + 1 + 2 + digest.Size
)

// Anchor - a signed anchor transaction
type Anchor struct {
	Raw        []byte
	Hash       string
	InputValue int64
	Fee        int64
}

// Builder - constructs transactions spending the service address
type Builder struct {
	privateKey *btcec.PrivateKey
	pkScript   []byte
}

// NewBuilder - sign with the service key
func NewBuilder(key *keyring.Key) (*Builder, error) {
	pkScript, err := key.PkScript()
	if nil != err {
		return nil, err
	}
	return &Builder{
		privateKey: key.PrivateKey(),
		pkScript:   pkScript,
	}, nil
}

// Fee - satoshi for size bytes at a rate per 1000 bytes, rounded up
func Fee(size int, feeRate int64) int64 {
	return (int64(size)*feeRate + 999) / 1000
}

func estimatedSize(inputs int, change bool) int {
	size := baseSize + inputs*inputSize + commitmentSize
	if change {
		size += changeSize
	}
	return size
}

// Anchor - commit a digest spending the largest outputs first
//
// returns the transaction and the outputs it spends
func (b *Builder) Anchor(d [digest.Size]byte, utxos []UTXO, feeRate int64) (*Anchor, []UTXO, error) {
	candidates := make([]UTXO, 0, len(utxos))
	for _, u := range utxos {
		if bytes.Equal(u.ScriptPubKey, b.pkScript) && u.Amount > 0 {
			candidates = append(candidates, u)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Amount > candidates[j].Amount
	})

	total := int64(0)
	for i, u := range candidates {
		total += u.Amount
		n := i + 1

		withChange := Fee(estimatedSize(n, true), feeRate)
		if total-withChange >= DustLimit {
			return b.finish(d, candidates[:n], total, withChange)
		}
		if total >= Fee(estimatedSize(n, false), feeRate) {
			return b.finish(d, candidates[:n], total, total)
		}
	}
	return nil, nil, fault.ErrInsufficientFunds
}

func (b *Builder) finish(d [digest.Size]byte, spend []UTXO, total int64, fee int64) (*Anchor, []UTXO, error) {
	outpoints := make([]wire.OutPoint, len(spend))
	for i, u := range spend {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if nil != err {
			return nil, nil, err
		}
		outpoints[i] = *wire.NewOutPoint(hash, u.Vout)
	}
	a, err := b.build(d, outpoints, total, fee)
	if nil != err {
		return nil, nil, err
	}
	return a, spend, nil
}

// Replace - same inputs and digest with a higher fee
//
// the fee is at least the estimate at feeRate and at least the previous
// fee plus the incremental relay fee
func (b *Builder) Replace(previous []byte, inputValue int64, previousFee int64, feeRate int64) (*Anchor, error) {
	tx, err := Decode(previous)
	if nil != err {
		return nil, err
	}
	d, err := Commitment(tx)
	if nil != err {
		return nil, err
	}

	outpoints := make([]wire.OutPoint, len(tx.TxIn))
	for i, in := range tx.TxIn {
		outpoints[i] = in.PreviousOutPoint
	}

	size := estimatedSize(len(outpoints), true)
	fee := Fee(size, feeRate)
	minimum := previousFee + Fee(size, IncrementalRelayFee)
	if fee < minimum {
		fee = minimum
	}
	if inputValue-fee < DustLimit {
		fee = inputValue
	}
	if fee <= previousFee || fee > inputValue {
		return nil, fault.ErrInsufficientFunds
	}
	return b.build(d, outpoints, inputValue, fee)
}

func (b *Builder) build(d [digest.Size]byte, outpoints []wire.OutPoint, total int64, fee int64) (*Anchor, error) {
	tx := wire.NewMsgTx(transactionVersion)
	for i := range outpoints {
		in := wire.NewTxIn(&outpoints[i], nil, nil)
		in.Sequence = ReplaceableSequence
		tx.AddTxIn(in)
	}

	script, err := txscript.NullDataScript(d[:])
	if nil != err {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, script))

	change := total - fee
	if change >= DustLimit {
		tx.AddTxOut(wire.NewTxOut(change, b.pkScript))
	} else {
		fee = total
	}

	for i := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(tx, i, b.pkScript, txscript.SigHashAll, b.privateKey, true)
		if nil != err {
			return nil, err
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	var buffer bytes.Buffer
	if err := tx.Serialize(&buffer); nil != err {
		return nil, err
	}
	return &Anchor{
		Raw:        buffer.Bytes(),
		Hash:       tx.TxHash().String(),
		InputValue: total,
		Fee:        fee,
	}, nil
}

// Decode - parse a serialised transaction
func Decode(raw []byte) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(transactionVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); nil != err {
		return nil, err
	}
	return tx, nil
}

// DecodeHex - parse a hex serialised transaction
func DecodeHex(s string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(s)
	if nil != err {
		return nil, err
	}
	return Decode(raw)
}

// TxHash - transaction id of a serialised transaction
func TxHash(raw []byte) (string, error) {
	tx, err := Decode(raw)
	if nil != err {
		return "", err
	}
	return tx.TxHash().String(), nil
}

// Commitment - the digest carried by the OP_RETURN output
func Commitment(tx *wire.MsgTx) ([digest.Size]byte, error) {
	var d [digest.Size]byte
	for _, out := range tx.TxOut {
		script := out.PkScript
		if 2+digest.Size == len(script) && txscript.OP_RETURN == script[0] && txscript.OP_DATA_32 == script[1] {
			copy(d[:], script[2:])
			return d, nil
		}
	}
	return d, fault.ErrMissingCommitment
}
