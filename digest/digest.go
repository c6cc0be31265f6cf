// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package digest - content addressing
//
// Every digest in the system is the lower case hex encoding of a
// single SHA-256. The same function hashes document content, signature
// bytes and bulletin payloads.
package digest

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/bitmark-inc/bulletind/fault"
)

// Size - number of bytes in a digest
const Size = chainhash.HashSize

// namespace for document part identifiers
var partNamespace = uuid.MustParse("0f6bb2f4-58a4-5b1e-9b0c-3f2ce1d2a6e7")

// Hash - hex encoded SHA-256 of the data
func Hash(data []byte) string {
	return hex.EncodeToString(chainhash.HashB(data))
}

// Bytes - decode a hex digest for embedding in a transaction
func Bytes(hexDigest string) ([Size]byte, error) {
	var d [Size]byte
	if hex.EncodedLen(Size) != len(hexDigest) {
		return d, fault.ErrInvalidDigest
	}
	if _, err := hex.Decode(d[:], []byte(hexDigest)); nil != err {
		return d, fault.ErrInvalidDigest
	}
	return d, nil
}

// PartID - stable identifier of a document part
//
// identical content under identical metadata always maps to the
// same identifier
func PartID(documentID string, hash string, friendlyName string, contentType string, size int64) string {
	fields := []string{
		documentID,
		hash,
		friendlyName,
		contentType,
		strconv.FormatInt(size, 10),
	}
	return uuid.NewSHA1(partNamespace, []byte(strings.Join(fields, "\x00"))).String()
}

// Payload - canonical text committed by a bulletin
//
// sorted, newline separated, no trailing newline
func Payload(entries []string) string {
	sorted := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		sorted = append(sorted, e)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, "\n")
}

// Bulletin - digest of a set of entry hashes
func Bulletin(entries []string) string {
	return Hash([]byte(Payload(entries)))
}
