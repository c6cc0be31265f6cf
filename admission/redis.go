// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package admission

import (
	"context"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel - funding changes are published here
const DefaultChannel = "bulletind:funding"

const reevaluateTimeout = time.Minute

// RedisConfiguration - the redis section of the configuration file
type RedisConfiguration struct {
	Address  string `gluamapper:"address" json:"address"`
	Password string `gluamapper:"password" json:"-"`
	Database int    `gluamapper:"database" json:"database"`
	Channel  string `gluamapper:"channel" json:"channel"`
}

// NewRedisClient - nil configuration or empty address means no redis
func NewRedisClient(configuration *RedisConfiguration) *redis.Client {
	if nil == configuration || "" == configuration.Address {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     configuration.Address,
		Password: configuration.Password,
		DB:       configuration.Database,
	})
}

// Notifier - publish funding changes so every daemon re-evaluates
type Notifier struct {
	client  redis.UniversalClient
	channel string
}

// NewNotifier - empty channel selects the default
func NewNotifier(client redis.UniversalClient, channel string) *Notifier {
	if "" == channel {
		channel = DefaultChannel
	}
	return &Notifier{
		client:  client,
		channel: channel,
	}
}

func (n *Notifier) FundingChanged(ctx context.Context, accountID string) error {
	return n.client.Publish(ctx, n.channel, accountID).Err()
}

// Reevaluator - acts on a funding change
type Reevaluator interface {
	Reevaluate(ctx context.Context, accountID string) (int, error)
}

// Subscriber - background process re-evaluating accounts named on the channel
type Subscriber struct {
	client      redis.UniversalClient
	channel     string
	reevaluator Reevaluator
	log         *logger.L
}

// NewSubscriber - empty channel selects the default
func NewSubscriber(client redis.UniversalClient, channel string, reevaluator Reevaluator) *Subscriber {
	if "" == channel {
		channel = DefaultChannel
	}
	return &Subscriber{
		client:      client,
		channel:     channel,
		reevaluator: reevaluator,
		log:         logger.New("funding"),
	}
}

func (s *Subscriber) Run(args interface{}, shutdown <-chan struct{}) {
	log := s.log
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	log.Infof("subscribed: %s", s.channel)
	messages := pubsub.Channel()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case m, ok := <-messages:
			if !ok {
				log.Warn("subscription closed")
				break loop
			}
			s.process(ctx, m.Payload)
		}
	}
	log.Info("shutting down…")
}

func (s *Subscriber) process(parent context.Context, accountID string) {
	if "" == accountID {
		return
	}
	ctx, cancel := context.WithTimeout(parent, reevaluateTimeout)
	defer cancel()

	n, err := s.reevaluator.Reevaluate(ctx, accountID)
	if nil != err {
		s.log.Errorf("reevaluate: %s  error: %s", accountID, err)
		return
	}
	s.log.Debugf("reevaluate: %s  funded: %d", accountID, n)
}
