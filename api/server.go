// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/bulletind/admission"
	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/proof"
	"github.com/bitmark-inc/bulletind/ratelimit"
	"github.com/bitmark-inc/bulletind/storage"
)

const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 20
	defaultMaximumBodySize   = 1 << 20
	limiterIdle              = 10 * time.Minute
	shutdownTimeout          = 5 * time.Second
	readHeaderTimeout        = 10 * time.Second
)

// Configuration - a block of configuration data read from the Lua file
type Configuration struct {
	Listen            string  `gluamapper:"listen" json:"listen"`
	RequestsPerSecond float64 `gluamapper:"requests_per_second" json:"requests_per_second"`
	Burst             int     `gluamapper:"burst" json:"burst"`
	MaximumBodySize   int64   `gluamapper:"maximum_body_size" json:"maximum_body_size"`
}

// Dependencies - what the handlers read and write
type Dependencies struct {
	Store    *storage.Store
	Admitter *admission.Admitter
	Proofs   *proof.Builder
	Params   *chaincfg.Params
}

// Server - gin engine and its HTTP listener
type Server struct {
	log           *logger.L
	configuration Configuration
	store         *storage.Store
	admitter      *admission.Admitter
	proofs        *proof.Builder
	params        *chaincfg.Params
	limiter       *ratelimit.Keyed
	engine        *gin.Engine
}

// New - create the server and its routes
func New(configuration *Configuration, d Dependencies) (*Server, error) {
	if nil == d.Store || nil == d.Admitter || nil == d.Proofs || nil == d.Params {
		return nil, fault.ErrMissingParameters
	}

	c := *configuration
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	if c.MaximumBodySize <= 0 {
		c.MaximumBodySize = defaultMaximumBodySize
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:           logger.New("api"),
		configuration: c,
		store:         d.Store,
		admitter:      d.Admitter,
		proofs:        d.Proofs,
		params:        d.Params,
		limiter:       ratelimit.NewKeyed(rate.Limit(c.RequestsPerSecond), c.Burst, limiterIdle),
		engine:        gin.New(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.engine
	e.Use(s.recoverPanic(), s.requestLog(), s.rateLimit())

	v1 := e.Group("/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/bulletins/:id", s.getBulletin)
		v1.GET("/documents/:id/proof", s.getProof)
		v1.POST("/pubkeys", s.readBody(), s.registerPubkey)
	}

	authorised := v1.Group("/")
	authorised.Use(s.readBody(), s.authenticate())
	{
		authorised.POST("/documents", s.createDocument)
		authorised.POST("/signatures", s.createSignature)
	}
}

// Handler - for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run - background process serving HTTP until shutdown
func (s *Server) Run(args interface{}, shutdown <-chan struct{}) {
	log := s.log

	server := &http.Server{
		Addr:              s.configuration.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Infof("listen: %s", s.configuration.Listen)
		err := server.ListenAndServe()
		if nil != err && !errors.Is(err, http.ErrServerClosed) {
			log.Criticalf("listen: %s  error: %s", s.configuration.Listen, err)
		}
	}()

	select {
	case <-shutdown:
	case <-done:
		return
	}

	log.Info("shutting down…")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); nil != err {
		log.Errorf("shutdown error: %s", err)
	}
	<-done
	log.Info("stopped")
}
