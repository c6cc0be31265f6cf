// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bitcoin - node access and anchor transactions
//
// An anchor transaction spends outputs of the service address and has
// one OP_RETURN output carrying a 32 byte digest:
//
//	6a 20 <digest>
//
// followed by change to the same address when the change is above the
// dust limit. Every input signals replaceability so that a stuck
// transaction can be replaced by one with a higher fee.
package bitcoin
