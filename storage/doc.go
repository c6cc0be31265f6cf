// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - persistent records
//
// Relational records live in PostgreSQL behind gorm:
//
//	documents                  - a group of parts owned by an account
//	document_parts             - content hash + metadata, id = PartID(...)
//	pubkeys                    - proven signer identities, nonce for API replay
//	document_part_signatures   - entries: signature over a part hash,
//	                             status parked|funded, bulletin_id once attached
//	bulletins                  - draft|proposed|submitted|published
//	bumps                      - every transaction attempt of a bulletin
//	accounts                   - credits and terms acceptance for funding
//
// The single draft bulletin is guaranteed by a partial unique index on
// bulletins(state) for state = 'draft'; attachment takes row locks on
// the entry and the draft inside one transaction.
//
// Block headers already looked up from the node are kept in LevelDB,
// split into tables by a one byte key prefix:
//
//	B ++ block hash            - header data: height ++ time
//	C ++ "checkpoint"          - hash of the last fully processed block
package storage
