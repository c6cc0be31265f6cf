// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package api - HTTP surface of the service
//
// reads are public; document creation and signature intake need an
// Authentication header holding a SignedPayload whose payload describes
// the request (method, path, nonce, body and query hashes). The nonce
// must increase with every request of a signer.
package api
