// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package anchor - carry bulletins onto the chain
//
// each tick of the engine runs these steps in order, a failure in one
// bulletin is logged and the step continues with the next:
//
//	sweep    attach funded entries that missed their draft
//	promote  propose the draft when the policy says it is due
//	submit   build, record and broadcast a transaction per proposed bulletin
//	confirm  publish bulletins whose transaction is deep enough
//	bump     replace transactions that have waited too long
//
// A transaction is always recorded before it is broadcast; one that
// the node does not know is broadcast again with identical bytes.
package anchor
