// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ratelimit - token bucket limiting of outgoing and incoming requests
package ratelimit

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/bulletind/fault"
)

// Limit - delay a single request until the limiter permits it
func Limit(limiter *rate.Limiter) error {
	r := limiter.Reserve()
	if !r.OK() {
		return fault.ErrRateLimiting
	}
	time.Sleep(r.Delay())
	return nil
}

// LimitContext - as Limit, abandoned when the context ends
func LimitContext(ctx context.Context, limiter *rate.Limiter) error {
	r := limiter.Reserve()
	if !r.OK() {
		return fault.ErrRateLimiting
	}
	delay := r.Delay()
	if 0 == delay {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Keyed - a separate limiter per key, forgotten when idle
type Keyed struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewKeyed - limiters unused for idle are discarded
func NewKeyed(limit rate.Limit, burst int, idle time.Duration) *Keyed {
	return &Keyed{
		limiters: cache.New(idle, 2*idle),
		limit:    limit,
		burst:    burst,
	}
}

// Allow - false if the key has exceeded its rate
func (k *Keyed) Allow(key string) bool {
	if x, found := k.limiters.Get(key); found {
		k.limiters.SetDefault(key, x)
		return x.(*rate.Limiter).Allow()
	}
	limiter := rate.NewLimiter(k.limit, k.burst)
	if err := k.limiters.Add(key, limiter, cache.DefaultExpiration); nil != err {
		// lost a race with another request for the same key
		if x, found := k.limiters.Get(key); found {
			return x.(*rate.Limiter).Allow()
		}
	}
	return limiter.Allow()
}
