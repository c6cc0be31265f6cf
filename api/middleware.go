// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/signature"
	"github.com/bitmark-inc/bulletind/storage"
)

// header carrying the SignedPayload of a request
const authenticationHeader = "Authentication"

// context key of the authenticated identity
const pubkeyKey = "pubkey"

func (s *Server) recoverPanic() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); nil != r {
				s.log.Criticalf("%s %s  panic: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"message": "internal error"},
				})
			}
		}()
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugf("%s %s  status: %d  duration: %s  client: %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			s.respondError(c, fault.ErrRateLimiting)
			return
		}
		c.Next()
	}
}

// keep the raw body, it is both signed and decoded
func (s *Server) readBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.configuration.MaximumBodySize))
		if nil != err {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.respondError(c, fault.Validation("body", fault.CodeMalformedPayload, "body too large"))
				return
			}
			s.respondError(c, fault.Validation("body", fault.CodeMalformedPayload, err.Error()))
			return
		}
		c.Set(gin.BodyBytesKey, body)
		c.Next()
	}
}

func bodyOf(c *gin.Context) []byte {
	if b, ok := c.Get(gin.BodyBytesKey); ok {
		if body, ok := b.([]byte); ok {
			return body
		}
	}
	return []byte{}
}

// verify the Authentication header against the request and advance
// the signer's nonce
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		header := c.GetHeader(authenticationHeader)
		if "" == header {
			s.respondError(c, fault.Validation(authenticationHeader, fault.CodeRequired, "authentication is required"))
			return
		}
		envelope, err := signature.ParseSignedPayload(header)
		if nil != err {
			s.respondError(c, err)
			return
		}

		pubkey, err := s.store.PubkeyByAddress(ctx, envelope.Signer)
		if errors.Is(err, fault.ErrPubkeyNotFound) {
			s.respondError(c, fault.Validation("signer", fault.CodeUnknownSigner, "signer is not registered"))
			return
		}
		if nil != err {
			s.respondError(c, err)
			return
		}

		if err := envelope.Check(s.params); nil != err {
			s.respondError(c, err)
			return
		}
		request, err := envelope.APIRequest()
		if nil != err {
			s.respondError(c, err)
			return
		}
		err = request.Matches(c.Request.Method, c.Request.URL.Path, c.Request.URL.Query(), bodyOf(c))
		if nil != err {
			s.respondError(c, err)
			return
		}

		ok, err := s.store.AdvanceNonce(ctx, pubkey.ID, request.Nonce)
		if nil != err {
			s.respondError(c, err)
			return
		}
		if !ok {
			s.respondError(c, fault.Validation("nonce", fault.CodeStaleNonce, "nonce must increase"))
			return
		}

		c.Set(pubkeyKey, pubkey)
		c.Next()
	}
}

func authenticated(c *gin.Context) *storage.Pubkey {
	return c.MustGet(pubkeyKey).(*storage.Pubkey)
}
