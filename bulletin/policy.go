// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bulletin

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/storage"
)

// promotion modes
const (
	ModeTime   = "time"   // age of the draft only
	ModeCount  = "count"  // number of entries only
	ModeEither = "either" // whichever is reached first
	ModeManual = "manual" // operator only
)

const (
	defaultMaximumAge     = time.Hour
	defaultMinimumEntries = 500
)

// PolicyConfiguration - the policy section of the configuration file
type PolicyConfiguration struct {
	Mode           string `gluamapper:"mode" json:"mode"`
	MaximumAge     int    `gluamapper:"maximum_age" json:"maximum_age"` // seconds
	MinimumEntries int    `gluamapper:"minimum_entries" json:"minimum_entries"`
}

// Policy - when a draft becomes due for promotion
type Policy struct {
	Mode           string
	MaximumAge     time.Duration
	MinimumEntries int
}

// DefaultPolicy - one hour or five hundred entries
func DefaultPolicy() Policy {
	return Policy{
		Mode:           ModeEither,
		MaximumAge:     defaultMaximumAge,
		MinimumEntries: defaultMinimumEntries,
	}
}

// NewPolicy - validate a configured policy, zero values take defaults
func NewPolicy(c *PolicyConfiguration) (Policy, error) {
	p := DefaultPolicy()
	if nil == c {
		return p, nil
	}
	if "" != c.Mode {
		p.Mode = strings.ToLower(c.Mode)
	}
	if c.MaximumAge > 0 {
		p.MaximumAge = time.Duration(c.MaximumAge) * time.Second
	}
	if c.MinimumEntries > 0 {
		p.MinimumEntries = c.MinimumEntries
	}
	switch p.Mode {
	case ModeTime, ModeCount, ModeEither, ModeManual:
	default:
		return p, fault.ErrInvalidPolicy
	}
	if c.MaximumAge < 0 || c.MinimumEntries < 0 {
		return p, fault.ErrInvalidPolicy
	}
	return p, nil
}

// Due - a non-empty draft has met the policy
func (p Policy) Due(draft *storage.Bulletin, now time.Time) bool {
	if nil == draft || 0 == draft.EntryCount {
		return false
	}
	aged := now.Sub(draft.StartedAt) >= p.MaximumAge
	full := draft.EntryCount >= p.MinimumEntries

	switch p.Mode {
	case ModeTime:
		return aged
	case ModeCount:
		return full
	case ModeEither:
		return aged || full
	default:
		return false
	}
}

func (p Policy) String() string {
	return fmt.Sprintf("%s(age: %s, entries: %d)", p.Mode, p.MaximumAge, p.MinimumEntries)
}
