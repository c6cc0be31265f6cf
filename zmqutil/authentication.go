// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"sync"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/bulletind/fault"
)

// the ZAP handler is process wide
var (
	authOnce  sync.Once
	authError error
)

// Authorise - start the ZAP handler and set the CURVE clients a
// domain accepts
//
// with no client keys any client holding the server public key may
// connect, otherwise only the listed 32 byte public keys
func Authorise(log *logger.L, zapDomain string, clients [][]byte) error {
	authOnce.Do(func() {
		zmq.AuthSetVerbose(false)
		authError = zmq.AuthStart()
	})
	if nil != authError {
		return authError
	}

	keys := make([]string, 0, len(clients))
	for _, client := range clients {
		if publicLength != len(client) {
			return fault.ErrInvalidPublicKeyFile
		}
		keys = append(keys, zmq.Z85encode(string(client)))
	}

	zmq.AuthCurveRemoveAll(zapDomain)
	if 0 == len(keys) {
		zmq.AuthCurveAdd(zapDomain, zmq.CURVE_ALLOW_ANY)
		log.Infof("zap domain: %s  clients: any", zapDomain)
		return nil
	}
	zmq.AuthCurveAdd(zapDomain, keys...)
	log.Infof("zap domain: %s  clients: %d", zapDomain, len(keys))
	return nil
}
