// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/bulletind/fault"
)

// Subscriber - a SUB socket connected to one publisher
type Subscriber struct {
	socket *zmq.Socket
	poller *zmq.Poller
}

// NewSubscriber - connect to address and receive every topic
//
// the client keypair is generated if not supplied
func NewSubscriber(address string, serverPublicKey []byte, topics ...string) (*Subscriber, error) {
	if publicLength != len(serverPublicKey) {
		return nil, fault.ErrInvalidPublicKeyFile
	}
	connectTo, v6, err := CanonicalIPandPort("tcp://", address)
	if nil != err {
		return nil, err
	}

	public, private, err := zmq.NewCurveKeypair()
	if nil != err {
		return nil, err
	}

	socket, err := zmq.NewSocket(zmq.SUB)
	if nil != err {
		return nil, err
	}

	err = socket.SetCurveServer(0)
	if nil != err {
		goto failure
	}
	err = socket.SetCurvePublickey(public)
	if nil != err {
		goto failure
	}
	err = socket.SetCurveSecretkey(private)
	if nil != err {
		goto failure
	}
	err = socket.SetCurveServerkey(string(serverPublicKey))
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
	if 0 == len(topics) {
		topics = []string{""}
	}
	for _, topic := range topics {
		err = socket.SetSubscribe(topic)
		if nil != err {
			goto failure
		}
	}
	err = socket.Connect(connectTo)
	if nil != err {
		goto failure
	}

	return &Subscriber{
		socket: socket,
		poller: poller(socket),
	}, nil

failure:
	socket.Close()
	return nil, err
}

func poller(socket *zmq.Socket) *zmq.Poller {
	p := zmq.NewPoller()
	p.Add(socket, zmq.POLLIN)
	return p
}

// Receive - next multipart message, nil if timeout expires first
func (s *Subscriber) Receive(timeout time.Duration) ([][]byte, error) {
	polled, err := s.poller.Poll(timeout)
	if nil != err {
		return nil, err
	}
	if 0 == len(polled) {
		return nil, nil
	}
	return s.socket.RecvMessageBytes(0)
}

// Close - disconnect
func (s *Subscriber) Close() error {
	return s.socket.Close()
}
