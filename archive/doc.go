// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package archive - write-once copies of bulletin payload text
//
// an object is named by the bulletin digest so rewriting an existing
// object is never needed, a second write of the same digest succeeds
// without touching the stored copy
package archive
