// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"errors"
	"fmt"
)

// error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised      = ExistsError("already initialised")
	ErrAlreadyPublished        = ExistsError("bulletin already published")
	ErrArchiveFailed           = ProcessError("archive failed")
	ErrBulletinNotFound        = NotFoundError("bulletin not found")
	ErrConfirmationMismatch    = InvalidError("confirmation does not match live transaction hash")
	ErrCryptoFailed            = ProcessError("cryptographic operation failed")
	ErrDatabaseIsNotSet        = ProcessError("database is not set")
	ErrDocumentNotFound        = NotFoundError("document not found")
	ErrDraftContention         = ProcessError("draft bulletin contention: retry limit reached")
	ErrEntryAttached           = ExistsError("entry already attached")
	ErrEntryNotFound           = NotFoundError("entry not found")
	ErrEntryNotFunded          = InvalidError("entry is not funded")
	ErrFeeCeilingReached       = ProcessError("fee ceiling reached")
	ErrHashNotFound            = NotFoundError("hash not found")
	ErrHeaderNotFound          = NotFoundError("block header not found")
	ErrInsufficientFunds       = ProcessError("insufficient funds for anchor transaction")
	ErrInvalidBulletinState    = InvalidError("invalid bulletin state")
	ErrInvalidChain            = InvalidError("invalid chain")
	ErrInvalidConfiguration    = InvalidError("invalid configuration")
	ErrInvalidDigest           = InvalidError("invalid digest")
	ErrInvalidIPAddress        = InvalidError("invalid IP address")
	ErrInvalidKeyringFile      = InvalidError("invalid keyring file")
	ErrInvalidLoggerChannel    = InvalidError("invalid logger channel")
	ErrInvalidPassphraseLength = InvalidError("passphrase length is invalid")
	ErrInvalidPolicy           = InvalidError("invalid promotion policy")
	ErrInvalidPortNumber       = InvalidError("invalid port number")
	ErrInvalidPrivateKeyFile   = InvalidError("invalid private key file")
	ErrInvalidPublicKeyFile    = InvalidError("invalid public key file")
	ErrInvalidStructPointer    = InvalidError("invalid struct pointer")
	ErrKeyFileAlreadyExists    = ExistsError("key file already exists")
	ErrKeyringFileExists       = ExistsError("keyring file already exists")
	ErrMissingCommitment       = InvalidError("transaction has no commitment output")
	ErrMissingParameters       = InvalidError("missing parameters")
	ErrNoDraft                 = NotFoundError("no draft bulletin")
	ErrPassphraseMismatch      = InvalidError("passphrase mismatch")
	ErrPubkeyNotFound          = NotFoundError("pubkey not found")
	ErrPublisherQueueFull      = ProcessError("publisher queue full")
	ErrRateLimiting            = InvalidError("rate limiting")
	ErrRemoteRPC               = ProcessError("node rpc failed")
	ErrTransactionNotFound     = NotFoundError("transaction not found")
	ErrTransactionRejected     = ProcessError("transaction rejected by node")
	ErrWrongPassphrase         = InvalidError("wrong passphrase")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool   { var x ExistsError; return errors.As(e, &x) }
func IsErrInvalid(e error) bool  { var x InvalidError; return errors.As(e, &x) }
func IsErrNotFound(e error) bool { var x NotFoundError; return errors.As(e, &x) }
func IsErrProcess(e error) bool  { var x ProcessError; return errors.As(e, &x) }

// stable codes carried by a ValidationError
const (
	CodeMalformedSignature = "malformed_signature"
	CodeMalformedPayload   = "malformed_payload"
	CodeSignerMismatch     = "signer_mismatch"
	CodePayloadMismatch    = "payload_mismatch"
	CodeUnsupportedContent = "unsupported_content"
	CodeStaleNonce         = "stale_nonce"
	CodeRequired           = "required"
	CodeUnknownSigner      = "unknown_signer"
)

// ValidationError - a caller supplied value was rejected
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Code, e.Message)
}

// Validation - create a validation error
func Validation(field string, code string, message string) error {
	return &ValidationError{
		Field:   field,
		Code:    code,
		Message: message,
	}
}

func IsErrValidation(e error) bool {
	var v *ValidationError
	return errors.As(e, &v)
}

// NotYetError - blocked on a bulletin that has not been published
type NotYetError struct {
	BulletinID string `json:"bulletin_id"`
	State      string `json:"state"`
}

func (e *NotYetError) Error() string {
	if "" == e.BulletinID {
		return "not yet: entry is waiting for a bulletin"
	}
	return fmt.Sprintf("not yet: bulletin %s is %s", e.BulletinID, e.State)
}

// NotYet - create a not yet signal for a bulletin
func NotYet(bulletinID string, state string) error {
	return &NotYetError{
		BulletinID: bulletinID,
		State:      state,
	}
}

func IsErrNotYet(e error) bool {
	var n *NotYetError
	return errors.As(e, &n)
}

// AsNotYet - extract the blocking bulletin from a not yet signal
func AsNotYet(e error) (*NotYetError, bool) {
	var n *NotYetError
	if errors.As(e, &n) {
		return n, true
	}
	return nil, false
}
