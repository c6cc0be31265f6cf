// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"time"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"
)

const (
	heartbeatInterval = 15 * time.Second
	heartbeatTimeout  = 60 * time.Second
	heartbeatTTL      = 120 * time.Second
)

// NewBind - bind a list of addresses
//
// creates up to 2 sockets for separate IPv4 and IPv6 traffic
func NewBind(log *logger.L, socketType zmq.Type, zapDomain string, privateKey []byte, publicKey []byte, listen []string) (*zmq.Socket, *zmq.Socket, error) {
	socket4 := (*zmq.Socket)(nil) // IPv4 traffic
	socket6 := (*zmq.Socket)(nil) // IPv6 traffic

	fail := func(err error) (*zmq.Socket, *zmq.Socket, error) {
		if nil != socket4 {
			socket4.Close()
		}
		if nil != socket6 {
			socket6.Close()
		}
		return nil, nil, err
	}

	for i, address := range listen {
		bindTo, v6, err := CanonicalIPandPort("tcp://", address)
		if nil != err {
			log.Errorf("invalid bind[%d]: %q  error: %s", i, address, err)
			return fail(err)
		}

		socket := socket4
		if v6 {
			socket = socket6
		}
		if nil == socket {
			socket, err = NewServerSocket(socketType, zapDomain, privateKey, publicKey, v6)
			if nil != err {
				return fail(err)
			}
			if v6 {
				socket6 = socket
			} else {
				socket4 = socket
			}
		}

		if err := socket.Bind(bindTo); nil != err {
			log.Errorf("cannot bind[%d]: %q  error: %s", i, bindTo, err)
			return fail(err)
		}
		log.Infof("bind[%d]: %q  IPv6: %v", i, bindTo, v6)
	}
	return socket4, socket6, nil
}

// NewServerSocket - create a socket suitable for a server side connection
//
// the clients it accepts are set by Authorise for the same zapDomain
func NewServerSocket(socketType zmq.Type, zapDomain string, privateKey []byte, publicKey []byte, v6 bool) (*zmq.Socket, error) {
	socket, err := zmq.NewSocket(socketType)
	if nil != err {
		return nil, err
	}

	err = socket.SetCurveServer(1)
	if nil != err {
		goto failure
	}
	err = socket.SetCurveSecretkey(string(privateKey))
	if nil != err {
		goto failure
	}
	err = socket.SetZapDomain(zapDomain)
	if nil != err {
		goto failure
	}
	err = socket.SetIdentity(string(publicKey)) // just use public key for identity
	if nil != err {
		goto failure
	}
	err = socket.SetIpv6(v6)
	if nil != err {
		goto failure
	}
	err = socket.SetLinger(0)
	if nil != err {
		goto failure
	}

	// heartbeat
	err = socket.SetHeartbeatIvl(heartbeatInterval)
	if nil != err {
		goto failure
	}
	err = socket.SetHeartbeatTimeout(heartbeatTimeout)
	if nil != err {
		goto failure
	}
	err = socket.SetHeartbeatTtl(heartbeatTTL)
	if nil != err {
		goto failure
	}
	return socket, nil

failure:
	socket.Close()
	return nil, err
}
