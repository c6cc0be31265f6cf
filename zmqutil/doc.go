// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zmqutil - CURVE secured ZeroMQ sockets
//
// keys are stored hex encoded with a PUBLIC: or PRIVATE: tag, a
// server socket uses its public key as identity
package zmqutil
