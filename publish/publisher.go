// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package publish

import (
	"encoding/json"
	"sync/atomic"

	"github.com/bitmark-inc/logger"
	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/zmqutil"
)

const (
	queueSize = 1000
	zapDomain = "bulletind-publish"
)

// Configuration - a block of configuration data read from the Lua file
type Configuration struct {
	Broadcast  []string `gluamapper:"broadcast" json:"broadcast"`
	PrivateKey string   `gluamapper:"private_key" json:"private_key"`
	PublicKey  string   `gluamapper:"public_key" json:"public_key"`
	Clients    []string `gluamapper:"clients" json:"clients"` // tagged public keys, empty allows any subscriber
}

type message struct {
	kind string
	data []byte
}

// Publisher - queues events and sends them from a background process
type Publisher struct {
	log     *logger.L
	socket4 *zmq.Socket
	socket6 *zmq.Socket
	queue   chan message
	dropped uint64
}

// New - bind the broadcast addresses
func New(configuration *Configuration) (*Publisher, error) {
	log := logger.New("publish")

	if 0 == len(configuration.Broadcast) {
		return nil, fault.ErrMissingParameters
	}

	privateKey, err := zmqutil.ReadPrivateKeyFile(configuration.PrivateKey)
	if nil != err {
		log.Errorf("read private key file: %q  error: %s", configuration.PrivateKey, err)
		return nil, err
	}
	publicKey, err := zmqutil.ReadPublicKeyFile(configuration.PublicKey)
	if nil != err {
		log.Errorf("read public key file: %q  error: %s", configuration.PublicKey, err)
		return nil, err
	}
	log.Tracef("public key: %x", publicKey)

	clients := make([][]byte, 0, len(configuration.Clients))
	for i, key := range configuration.Clients {
		client, err := zmqutil.ReadPublicKey(key)
		if nil != err {
			log.Errorf("client[%d]: %q  error: %s", i, key, err)
			return nil, err
		}
		clients = append(clients, client)
	}
	if err := zmqutil.Authorise(log, zapDomain, clients); nil != err {
		return nil, err
	}

	socket4, socket6, err := zmqutil.NewBind(log, zmq.PUB, zapDomain, privateKey, publicKey, configuration.Broadcast)
	if nil != err {
		return nil, err
	}

	return &Publisher{
		log:     log,
		socket4: socket4,
		socket6: socket6,
		queue:   make(chan message, queueSize),
	}, nil
}

// Publish - queue an event, never blocks the caller
//
// an event that cannot be queued or encoded is dropped and logged
func (p *Publisher) Publish(kind string, payload interface{}) {
	if err := p.enqueue(kind, payload); nil != err {
		n := atomic.AddUint64(&p.dropped, 1)
		p.log.Warnf("drop: %s  error: %s  total dropped: %d", kind, err, n)
	}
}

func (p *Publisher) enqueue(kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if nil != err {
		return err
	}
	select {
	case p.queue <- message{kind: kind, data: data}:
		return nil
	default:
		return fault.ErrPublisherQueueFull
	}
}

// Dropped - number of events never sent
func (p *Publisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// Run - background process sending queued events
func (p *Publisher) Run(args interface{}, shutdown <-chan struct{}) {
	log := p.log
	log.Info("starting…")

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case item := <-p.queue:
			p.send(item)
		}
	}

	log.Info("shutting down…")
	p.close()
	log.Info("stopped")
}

func (p *Publisher) send(item message) {
	for _, socket := range []*zmq.Socket{p.socket4, p.socket6} {
		if nil == socket {
			continue
		}
		_, err := socket.SendMessageDontwait(item.kind, item.data)
		if nil != err {
			p.log.Errorf("send: %s  error: %s", item.kind, err)
			continue
		}
		p.log.Debugf("sent: %s  bytes: %d", item.kind, len(item.data))
	}
}

func (p *Publisher) close() {
	if nil != p.socket4 {
		p.socket4.Close()
	}
	if nil != p.socket6 {
		p.socket6.Close()
	}
}
