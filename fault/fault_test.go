// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/bulletind/fault"
)

var (
	ErrExistsOne   = fault.ExistsError("exists one ")
	ErrInvalidOne  = fault.InvalidError("invalid one")
	ErrNotFoundOne = fault.NotFoundError("not found one")
	ErrProcessOne  = fault.ProcessError("process one")
	ErrValidation  = fault.Validation("signature", fault.CodeMalformedSignature, "bad length")
	ErrNotYet      = fault.NotYet("b-1", "submitted")
)

// each error belongs to exactly one class, also when wrapped
func TestClasses(t *testing.T) {
	errorList := []struct {
		err        error
		exists     bool
		invalid    bool
		notFound   bool
		process    bool
		validation bool
		notYet     bool
	}{
		{ErrExistsOne, true, false, false, false, false, false},
		{ErrInvalidOne, false, true, false, false, false, false},
		{ErrNotFoundOne, false, false, true, false, false, false},
		{ErrProcessOne, false, false, false, true, false, false},
		{ErrValidation, false, false, false, false, true, false},
		{ErrNotYet, false, false, false, false, false, true},
		{fmt.Errorf("wrapped: %w", ErrNotFoundOne), false, false, true, false, false, false},
		{fmt.Errorf("wrapped: %w", ErrNotYet), false, false, false, false, false, true},
	}

	for i, e := range errorList {
		err := e.err
		if fault.IsErrExists(err) != e.exists {
			t.Errorf("%d: expected 'exists' == %v for err = %v", i, e.exists, err)
		}
		if fault.IsErrInvalid(err) != e.invalid {
			t.Errorf("%d: expected 'invalid' == %v for err = %v", i, e.invalid, err)
		}
		if fault.IsErrNotFound(err) != e.notFound {
			t.Errorf("%d: expected 'not found' == %v for err = %v", i, e.notFound, err)
		}
		if fault.IsErrProcess(err) != e.process {
			t.Errorf("%d: expected 'process' == %v for err = %v", i, e.process, err)
		}
		if fault.IsErrValidation(err) != e.validation {
			t.Errorf("%d: expected 'validation' == %v for err = %v", i, e.validation, err)
		}
		if fault.IsErrNotYet(err) != e.notYet {
			t.Errorf("%d: expected 'not yet' == %v for err = %v", i, e.notYet, err)
		}
	}
}

func TestNotYetCarriesBulletin(t *testing.T) {
	err := fmt.Errorf("proof: %w", fault.NotYet("b-42", "proposed"))

	n, ok := fault.AsNotYet(err)
	assert.True(t, ok, "not yet extracted")
	assert.Equal(t, "b-42", n.BulletinID, "wrong bulletin")
	assert.Equal(t, "proposed", n.State, "wrong state")
	assert.Equal(t, "not yet: bulletin b-42 is proposed", n.Error(), "wrong message")
}

func TestValidationMessage(t *testing.T) {
	assert.Equal(t, "signature: malformed_signature: bad length", ErrValidation.Error())
}

func TestPanics(t *testing.T) {
	assert.PanicsWithValue(t, "abort now", func() { fault.Panic("abort now") })
	assert.Panics(t, func() { fault.Panicf("abort: %d", 1) })
	assert.NotPanics(t, func() { fault.PanicIfError("open", nil) })
	assert.PanicsWithValue(t, "open failed with error: missing parameters", func() {
		fault.PanicIfError("open", fault.ErrMissingParameters)
	})
}
