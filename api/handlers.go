// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/digest"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/signature"
	"github.com/bitmark-inc/bulletind/storage"
)

// the only payload purpose accepted for identity registration
const registerPurpose = "register"

// content types a part may declare
var supportedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"text/plain":      {},
	"text/markdown":   {},
	"image/png":       {},
	"image/jpeg":      {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"chain":  chain.Name(s.params),
	})
}

func (s *Server) getBulletin(c *gin.Context) {
	b, err := s.store.GetBulletin(c.Request.Context(), c.Param("id"))
	if nil != err {
		s.respondError(c, err)
		return
	}
	reply := bulletinReply{
		Bulletin: b,
	}
	if 0 != len(b.RawTransaction) {
		reply.RawTransaction = hex.EncodeToString(b.RawTransaction)
	}
	c.JSON(http.StatusOK, reply)
}

type bulletinReply struct {
	*storage.Bulletin
	RawTransaction string `json:"raw_transaction,omitempty"`
}

func (s *Server) getProof(c *gin.Context) {
	p, err := s.proofs.Build(c.Request.Context(), c.Param("id"))
	if nil != err {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type registerPayload struct {
	AccountID string `json:"account_id"`
	Purpose   string `json:"purpose"`
}

// body is a SignedPayload over a registerPayload, the public key is
// recovered from the signature
func (s *Server) registerPubkey(c *gin.Context) {
	ctx := c.Request.Context()

	envelope, err := signature.ParseSignedPayload(string(bodyOf(c)))
	if nil != err {
		s.respondError(c, err)
		return
	}
	var payload registerPayload
	if err := json.Unmarshal(envelope.Payload, &payload); nil != err {
		s.respondError(c, fault.Validation("payload", fault.CodeMalformedPayload, err.Error()))
		return
	}
	if "" == strings.TrimSpace(payload.AccountID) {
		s.respondError(c, fault.Validation("account_id", fault.CodeRequired, "account_id is required"))
		return
	}
	if registerPurpose != payload.Purpose {
		s.respondError(c, fault.Validation("purpose", fault.CodePayloadMismatch, "purpose must be register"))
		return
	}

	publicKey, address, err := envelope.Recover(s.params)
	if nil != err {
		s.respondError(c, err)
		return
	}

	pubkey := &storage.Pubkey{
		ID:        uuid.NewString(),
		AccountID: payload.AccountID,
		Address:   address,
		PublicKey: hex.EncodeToString(publicKey.SerializeCompressed()),
	}
	if err := s.store.CreatePubkey(ctx, pubkey); nil != err {
		s.respondError(c, err)
		return
	}
	s.log.Infof("registered: %s  account: %s", address, payload.AccountID)
	c.JSON(http.StatusCreated, pubkey)
}

type partRequest struct {
	Hash         string `json:"hash"`
	FriendlyName string `json:"friendly_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	IsBase       bool   `json:"is_base"`
}

type documentRequest struct {
	Title string        `json:"title"`
	Parts []partRequest `json:"parts"`
}

func (s *Server) createDocument(c *gin.Context) {
	var request documentRequest
	if err := c.ShouldBindBodyWith(&request, binding.JSON); nil != err {
		s.respondError(c, fault.Validation("body", fault.CodeMalformedPayload, err.Error()))
		return
	}
	if 0 == len(request.Parts) {
		s.respondError(c, fault.Validation("parts", fault.CodeRequired, "at least one part is required"))
		return
	}

	owner := authenticated(c)
	document := &storage.Document{
		ID:        uuid.NewString(),
		AccountID: owner.AccountID,
		Title:     request.Title,
		Parts:     make([]storage.DocumentPart, 0, len(request.Parts)),
	}
	seen := make(map[string]struct{}, len(request.Parts))
	for _, p := range request.Parts {
		hash := strings.ToLower(p.Hash)
		if _, err := digest.Bytes(hash); nil != err {
			s.respondError(c, fault.Validation("hash", fault.CodeMalformedPayload, "hash must be 64 hex digits"))
			return
		}
		if _, ok := supportedContentTypes[p.ContentType]; !ok {
			s.respondError(c, fault.Validation("content_type", fault.CodeUnsupportedContent, "unsupported content type: "+p.ContentType))
			return
		}
		if p.Size < 0 {
			s.respondError(c, fault.Validation("size", fault.CodeMalformedPayload, "size must not be negative"))
			return
		}
		id := digest.PartID(document.ID, hash, p.FriendlyName, p.ContentType, p.Size)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		document.Parts = append(document.Parts, storage.DocumentPart{
			ID:           id,
			Hash:         hash,
			FriendlyName: p.FriendlyName,
			ContentType:  p.ContentType,
			Size:         p.Size,
			IsBase:       p.IsBase,
		})
	}

	if err := s.store.CreateDocument(c.Request.Context(), document); nil != err {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, document)
}

type signatureRequest struct {
	PartID    string `json:"part_id"`
	Signature []byte `json:"signature"`
}

type signatureReply struct {
	ID            string  `json:"id"`
	SignatureHash string  `json:"signature_hash"`
	Status        string  `json:"status"`
	BulletinID    *string `json:"bulletin_id"`
}

// the signature is over the ASCII hex hash of the part
func (s *Server) createSignature(c *gin.Context) {
	ctx := c.Request.Context()

	var request signatureRequest
	if err := c.ShouldBindBodyWith(&request, binding.JSON); nil != err {
		s.respondError(c, fault.Validation("body", fault.CodeMalformedPayload, err.Error()))
		return
	}
	if signature.Length != len(request.Signature) {
		s.respondError(c, fault.Validation("signature", fault.CodeMalformedSignature, "signature must be 65 bytes"))
		return
	}

	part, err := s.store.GetPart(ctx, request.PartID)
	if nil != err {
		s.respondError(c, err)
		return
	}

	signer := authenticated(c)
	if !signature.Verify([]byte(part.Hash), request.Signature, signer.Address, s.params) {
		s.respondError(c, fault.Validation("signature", fault.CodeSignerMismatch, "signature does not verify for signer"))
		return
	}

	entry := &storage.DocumentPartSignature{
		ID:             uuid.NewString(),
		DocumentPartID: part.ID,
		PubkeyID:       signer.ID,
		AccountID:      signer.AccountID,
		Signature:      request.Signature,
		SignatureHash:  digest.Hash(request.Signature),
		Status:         storage.EntryParked,
	}
	stored, err := s.store.CreateSignature(ctx, entry)
	if nil != err {
		s.respondError(c, err)
		return
	}
	if stored.PubkeyID != signer.ID {
		s.respondError(c, fault.Validation("signature", fault.CodeSignerMismatch, "signature belongs to another signer"))
		return
	}

	status, err := s.admitter.Admit(ctx, stored.ID)
	if nil != err && storage.EntryFunded != status {
		s.respondError(c, err)
		return
	}

	current, err := s.store.GetEntry(ctx, stored.ID)
	if nil != err {
		s.respondError(c, err)
		return
	}

	code := http.StatusCreated
	if stored.ID != entry.ID {
		code = http.StatusOK
	}
	c.JSON(code, signatureReply{
		ID:            current.ID,
		SignatureHash: current.SignatureHash,
		Status:        current.Status,
		BulletinID:    current.BulletinID,
	})
}
