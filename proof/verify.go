// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package proof

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/sync/errgroup"

	"github.com/bitmark-inc/bulletind/bitcoin"
	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/signature"
)

// names of checks
const (
	CheckContent        = "content"
	CheckSignature      = "signature"
	CheckSignatureHash  = "signature_hash"
	CheckMembership     = "membership"
	CheckBulletinDigest = "bulletin_digest"
	CheckCommitment     = "commitment"
	CheckTransaction    = "transaction"
	CheckBlock          = "block"
)

// parallel checks
const maximumWorkers = 8

// ChainSource - any node able to confirm block inclusion
type ChainSource interface {
	GetTransaction(ctx context.Context, txID string) (*bitcoin.TxStatus, error)
	GetBlockHeader(ctx context.Context, blockHash string) (*bitcoin.BlockHeader, error)
}

// Options - what the verifier has besides the proof
type Options struct {
	Contents map[string][]byte // part id → raw content
	Chain    ChainSource       // nil skips the block check
}

// Skip - a link that could not be checked with the given options
type Skip struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

// Check - the outcome of one assertion
type Check struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
}

// Report - every check that was run
//
// OK covers only the checks that ran, Skipped lists what was not
// checked
type Report struct {
	OK      bool    `json:"ok"`
	Checks  []Check `json:"checks"`
	Skipped []Skip  `json:"skipped,omitempty"`
}

// Complete - all links were checked
func (r *Report) Complete() bool {
	return 0 == len(r.Skipped)
}

// Failed - the checks that did not pass
func (r *Report) Failed() []Check {
	failed := make([]Check, 0)
	for _, c := range r.Checks {
		if !c.OK {
			failed = append(failed, c)
		}
	}
	return failed
}

type collector struct {
	sync.Mutex
	checks  []Check
	skipped []Skip
}

func (c *collector) skip(name string, subject string, reason string) {
	c.Lock()
	c.skipped = append(c.skipped, Skip{Name: name, Subject: subject, Reason: reason})
	c.Unlock()
}

func (c *collector) add(name string, subject string, ok bool, format string, arguments ...interface{}) {
	check := Check{
		Name:    name,
		Subject: subject,
		OK:      ok,
	}
	if "" != format {
		check.Detail = fmt.Sprintf(format, arguments...)
	}
	c.Lock()
	c.checks = append(c.checks, check)
	c.Unlock()
}

// Verify - recompute every link of the proof
//
// a failure never stops verification, every failed assertion is in
// the report
func Verify(ctx context.Context, p *Proof, options Options) *Report {
	c := &collector{}

	params, err := chain.Params(p.Chain)
	if nil != err {
		c.add(CheckSignature, p.Chain, false, "unknown chain: %s", p.Chain)
		return finish(c)
	}

	parts := make(map[string]Part, len(p.Parts))
	for _, part := range p.Parts {
		parts[part.ID] = part
	}
	bulletins := make(map[string]*Bulletin, len(p.Bulletins))
	for i := range p.Bulletins {
		bulletins[p.Bulletins[i].ID] = &p.Bulletins[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maximumWorkers)

	for _, part := range p.Parts {
		if _, ok := options.Contents[part.ID]; !ok {
			c.skip(CheckContent, part.ID, "content not supplied")
		}
	}
	for id, content := range options.Contents {
		id, content := id, content
		g.Go(func() error {
			part, ok := parts[id]
			if !ok {
				c.add(CheckContent, id, false, "no such part")
				return nil
			}
			h := digest.Hash(content)
			c.add(CheckContent, id, h == part.Hash, "expected: %s  actual: %s", part.Hash, h)
			return nil
		})
	}

	for i := range p.Signatures {
		s := p.Signatures[i]
		g.Go(func() error {
			verifySignature(c, s, parts, bulletins[s.BulletinID], params)
			return nil
		})
	}

	for i := range p.Bulletins {
		b := &p.Bulletins[i]
		g.Go(func() error {
			verifyBulletin(gctx, c, b, options.Chain)
			return nil
		})
	}

	_ = g.Wait()
	return finish(c)
}

func finish(c *collector) *Report {
	sort.SliceStable(c.checks, func(i, j int) bool {
		if c.checks[i].Subject != c.checks[j].Subject {
			return c.checks[i].Subject < c.checks[j].Subject
		}
		return c.checks[i].Name < c.checks[j].Name
	})
	sort.SliceStable(c.skipped, func(i, j int) bool {
		if c.skipped[i].Name != c.skipped[j].Name {
			return c.skipped[i].Name < c.skipped[j].Name
		}
		return c.skipped[i].Subject < c.skipped[j].Subject
	})
	r := &Report{
		OK:      len(c.checks) > 0,
		Checks:  c.checks,
		Skipped: c.skipped,
	}
	for _, check := range c.checks {
		if !check.OK {
			r.OK = false
		}
	}
	return r
}

func verifySignature(c *collector, s Signature, parts map[string]Part, b *Bulletin, params *chaincfg.Params) {
	part, ok := parts[s.PartID]
	if !ok || part.Hash != s.PartHash {
		c.add(CheckSignature, s.EntryID, false, "part: %s  not in document with hash: %s", s.PartID, s.PartHash)
	} else {
		valid := signature.Verify([]byte(s.PartHash), s.Signature, s.Signer, params)
		c.add(CheckSignature, s.EntryID, valid, "signer: %s", s.Signer)
	}

	h := digest.Hash(s.Signature)
	c.add(CheckSignatureHash, s.EntryID, h == s.SignatureHash, "expected: %s  actual: %s", s.SignatureHash, h)

	if nil == b {
		c.add(CheckMembership, s.EntryID, false, "bulletin: %s  not in proof", s.BulletinID)
		return
	}
	i := sort.SearchStrings(b.Entries, s.SignatureHash)
	found := i < len(b.Entries) && b.Entries[i] == s.SignatureHash
	c.add(CheckMembership, s.EntryID, found, "bulletin: %s", b.ID)
}

func verifyBulletin(ctx context.Context, c *collector, b *Bulletin, source ChainSource) {
	sorted := sort.StringsAreSorted(b.Entries)
	d := digest.Bulletin(b.Entries)
	c.add(CheckBulletinDigest, b.ID, sorted && d == b.Digest, "expected: %s  actual: %s  sorted: %t", b.Digest, d, sorted)

	raw, err := hex.DecodeString(b.RawTransaction)
	if nil != err {
		c.add(CheckTransaction, b.ID, false, "raw transaction: %s", err)
		return
	}
	tx, err := bitcoin.Decode(raw)
	if nil != err {
		c.add(CheckTransaction, b.ID, false, "raw transaction: %s", err)
		return
	}
	txID := tx.TxHash().String()
	c.add(CheckTransaction, b.ID, txID == b.TransactionHash, "expected: %s  actual: %s", b.TransactionHash, txID)

	commitment, err := bitcoin.Commitment(tx)
	if nil != err {
		c.add(CheckCommitment, b.ID, false, "%s", err)
	} else {
		embedded := hex.EncodeToString(commitment[:])
		c.add(CheckCommitment, b.ID, embedded == b.Digest, "expected: %s  embedded: %s", b.Digest, embedded)
	}

	if nil == source {
		c.skip(CheckBlock, b.ID, "no chain source")
		return
	}
	status, err := source.GetTransaction(ctx, b.TransactionHash)
	if nil != err {
		c.add(CheckBlock, b.ID, false, "transaction: %s  error: %s", b.TransactionHash, err)
		return
	}
	if status.BlockHash != b.BlockHash || status.Confirmations <= 0 {
		c.add(CheckBlock, b.ID, false, "expected block: %s  node block: %q  confirmations: %d", b.BlockHash, status.BlockHash, status.Confirmations)
		return
	}
	header, err := source.GetBlockHeader(ctx, status.BlockHash)
	if nil != err {
		c.add(CheckBlock, b.ID, false, "block: %s  error: %s", status.BlockHash, err)
		return
	}
	ok := header.Height == b.BlockHeight && header.Time.Equal(b.BlockTime)
	c.add(CheckBlock, b.ID, ok, "block: %s  height: %d  time: %s  confirmations: %d", header.Hash, header.Height, header.Time.Format("2006-01-02T15:04:05Z"), status.Confirmations)
}
