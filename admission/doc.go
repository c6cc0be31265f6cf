// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package admission - decide whether a new entry enters a bulletin
//
// a funded entry is attached to the draft at once, an unfunded one is
// parked until a change in the account's funding is signalled; parked
// entries are never dropped
package admission
