// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package publish - broadcast lifecycle events over a CURVE secured
// ZeroMQ PUB socket
//
// each message is two frames: the event kind, used as the topic, and
// the JSON encoded event
package publish
