// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchor

import (
	"time"
)

const (
	defaultInterval           = time.Minute
	defaultConfirmations      = 3
	defaultBumpInterval       = 30 * time.Minute
	defaultFeeMultiplier      = 1.5
	defaultFeeCeiling         = 100000 // satoshi
	defaultMinimumFeeRate     = 1000   // satoshi per 1000 bytes
	defaultConfirmationTarget = 6      // blocks
	defaultSweepLimit         = 1000
)

// Configuration - the anchor section of the configuration file
type Configuration struct {
	Interval           int     `gluamapper:"interval" json:"interval"` // seconds
	Confirmations      int     `gluamapper:"confirmations" json:"confirmations"`
	BumpInterval       int     `gluamapper:"bump_interval" json:"bump_interval"` // seconds
	FeeMultiplier      float64 `gluamapper:"fee_multiplier" json:"fee_multiplier"`
	FeeCeiling         int64   `gluamapper:"fee_ceiling" json:"fee_ceiling"`
	MinimumFeeRate     int64   `gluamapper:"minimum_fee_rate" json:"minimum_fee_rate"`
	ConfirmationTarget int     `gluamapper:"confirmation_target" json:"confirmation_target"`
	SweepLimit         int     `gluamapper:"sweep_limit" json:"sweep_limit"`
}

// resolved settings
type settings struct {
	interval           time.Duration
	confirmations      int64
	bumpInterval       time.Duration
	feeMultiplier      float64
	feeCeiling         int64
	minimumFeeRate     int64
	confirmationTarget int
	sweepLimit         int
}

func resolve(c *Configuration) settings {
	s := settings{
		interval:           defaultInterval,
		confirmations:      defaultConfirmations,
		bumpInterval:       defaultBumpInterval,
		feeMultiplier:      defaultFeeMultiplier,
		feeCeiling:         defaultFeeCeiling,
		minimumFeeRate:     defaultMinimumFeeRate,
		confirmationTarget: defaultConfirmationTarget,
		sweepLimit:         defaultSweepLimit,
	}
	if nil == c {
		return s
	}
	if c.Interval > 0 {
		s.interval = time.Duration(c.Interval) * time.Second
	}
	if c.Confirmations > 0 {
		s.confirmations = int64(c.Confirmations)
	}
	if c.BumpInterval > 0 {
		s.bumpInterval = time.Duration(c.BumpInterval) * time.Second
	}
	if c.FeeMultiplier > 1 {
		s.feeMultiplier = c.FeeMultiplier
	}
	if c.FeeCeiling > 0 {
		s.feeCeiling = c.FeeCeiling
	}
	if c.MinimumFeeRate > 0 {
		s.minimumFeeRate = c.MinimumFeeRate
	}
	if c.ConfirmationTarget > 0 {
		s.confirmationTarget = c.ConfirmationTarget
	}
	if c.SweepLimit > 0 {
		s.sweepLimit = c.SweepLimit
	}
	return s
}
