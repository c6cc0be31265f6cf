// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signature

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
)

// SignedPayload - transient envelope binding a payload to its signer
//
// the byte fields are base64 in JSON
type SignedPayload struct {
	Payload   []byte `json:"payload"`
	Signer    string `json:"signer"`
	Signature []byte `json:"signature"`
}

// APIRequest - the payload of an authenticated HTTP request
type APIRequest struct {
	Path      string `json:"path"`
	Method    string `json:"method"`
	Nonce     int64  `json:"nonce"`
	BodyHash  string `json:"body_hash"`
	QueryHash string `json:"query_hash"`
}

// NewSignedPayload - sign a payload with a private key
func NewSignedPayload(payload []byte, privateKey *btcec.PrivateKey, params *chaincfg.Params) (*SignedPayload, error) {
	signer, err := Address(privateKey.PubKey(), true, params)
	if nil != err {
		return nil, err
	}
	sig, err := Sign(payload, privateKey)
	if nil != err {
		return nil, err
	}
	return &SignedPayload{
		Payload:   payload,
		Signer:    signer,
		Signature: sig,
	}, nil
}

// ParseSignedPayload - decode the JSON envelope
func ParseSignedPayload(text string) (*SignedPayload, error) {
	var s SignedPayload
	if err := json.Unmarshal([]byte(text), &s); nil != err {
		return nil, fault.Validation("payload", fault.CodeMalformedPayload, err.Error())
	}
	if "" == s.Signer {
		return nil, fault.Validation("signer", fault.CodeRequired, "signer is required")
	}
	if Length != len(s.Signature) {
		return nil, fault.Validation("signature", fault.CodeMalformedSignature, "signature must be 65 bytes")
	}
	return &s, nil
}

// Encode - the JSON envelope as a string
func (s *SignedPayload) Encode() (string, error) {
	b, err := json.Marshal(s)
	if nil != err {
		return "", err
	}
	return string(b), nil
}

// Check - the signature is well formed and belongs to Signer
func (s *SignedPayload) Check(params *chaincfg.Params) error {
	publicKey, compressed, err := RecoverPubkey(s.Payload, s.Signature)
	if nil != err {
		return fault.Validation("signature", fault.CodeMalformedSignature, err.Error())
	}
	recovered, err := Address(publicKey, compressed, params)
	if nil != err {
		return fault.Validation("signature", fault.CodeMalformedSignature, err.Error())
	}
	if !Verify(s.Payload, s.Signature, s.Signer, params) || recovered != s.Signer {
		return fault.Validation("signer", fault.CodeSignerMismatch, "signature does not belong to signer")
	}
	return nil
}

// Recover - the public key of a payload signed by a not yet known
// identity, returned together with its address
func (s *SignedPayload) Recover(params *chaincfg.Params) (*btcec.PublicKey, string, error) {
	publicKey, compressed, err := RecoverPubkey(s.Payload, s.Signature)
	if nil != err {
		return nil, "", fault.Validation("signature", fault.CodeMalformedSignature, err.Error())
	}
	address, err := Address(publicKey, compressed, params)
	if nil != err {
		return nil, "", err
	}
	if "" != s.Signer && s.Signer != address {
		return nil, "", fault.Validation("signer", fault.CodeSignerMismatch, "signature does not belong to signer")
	}
	return publicKey, address, nil
}

// APIRequest - decode the payload as an HTTP request description
func (s *SignedPayload) APIRequest() (*APIRequest, error) {
	var r APIRequest
	if err := json.Unmarshal(s.Payload, &r); nil != err {
		return nil, fault.Validation("payload", fault.CodeMalformedPayload, err.Error())
	}
	return &r, nil
}

// NewAPIRequest - a signed Authentication header value for a request
func NewAPIRequest(method string, path string, query url.Values, body []byte, nonce int64, privateKey *btcec.PrivateKey, params *chaincfg.Params) (string, error) {
	r := APIRequest{
		Path:      path,
		Method:    strings.ToUpper(method),
		Nonce:     nonce,
		BodyHash:  digest.Hash(body),
		QueryHash: QueryHash(query),
	}
	payload, err := json.Marshal(r)
	if nil != err {
		return "", err
	}
	s, err := NewSignedPayload(payload, privateKey, params)
	if nil != err {
		return "", err
	}
	return s.Encode()
}

// QueryHash - digest of a query in canonical (sorted key) form
func QueryHash(query url.Values) string {
	return digest.Hash([]byte(query.Encode()))
}

// Matches - the signed description covers this request
func (r *APIRequest) Matches(method string, path string, query url.Values, body []byte) error {
	if !strings.EqualFold(r.Method, method) {
		return fault.Validation("method", fault.CodePayloadMismatch, "method not signed")
	}
	if r.Path != path {
		return fault.Validation("path", fault.CodePayloadMismatch, "path not signed")
	}
	if r.BodyHash != digest.Hash(body) {
		return fault.Validation("body_hash", fault.CodePayloadMismatch, "body not signed")
	}
	if r.QueryHash != QueryHash(query) {
		return fault.Validation("query_hash", fault.CodePayloadMismatch, "query not signed")
	}
	return nil
}
