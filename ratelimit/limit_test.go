// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/bulletind/ratelimit"
)

func TestLimit(t *testing.T) {
	limiter := rate.NewLimiter(100, 1)
	start := time.Now()
	for i := 0; i < 5; i += 1 {
		assert.NoError(t, ratelimit.Limit(limiter))
	}
	assert.True(t, time.Since(start) >= 30*time.Millisecond, "requests were not delayed")
}

func TestLimitContextCancelled(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	assert.NoError(t, ratelimit.LimitContext(context.Background(), limiter))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, ratelimit.LimitContext(ctx, limiter))
}

func TestKeyed(t *testing.T) {
	k := ratelimit.NewKeyed(rate.Every(time.Hour), 2, time.Minute)
	assert.True(t, k.Allow("a"))
	assert.True(t, k.Allow("a"))
	assert.False(t, k.Allow("a"))
	assert.True(t, k.Allow("b"), "keys share a limiter")
}
