// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api serves the node over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/blinklabs-io/desci/ledger"
)

const (
	DefaultListenAddress = ":8080"
	APIPrefix            = "/api/v0"
	tracingServiceName   = "desci-api"
)

// APIConfig holds the settings for the HTTP API server
type APIConfig struct {
	ListenAddress string
	// EnableTracing adds the OpenTelemetry middleware
	EnableTracing bool
}

// API is the REST server for calls and contract queries
type API struct {
	config     APIConfig
	logger     *slog.Logger
	node       Node
	engine     *gin.Engine
	httpServer *http.Server
	addr       net.Addr
	mu         sync.Mutex
}

// New creates a new API server instance
func New(
	cfg APIConfig,
	node Node,
	logger *slog.Logger,
) *API {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	a := &API{
		config: cfg,
		logger: logger,
		node:   node,
	}
	a.engine = a.newRouter()
	return a
}

func (a *API) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if a.config.EnableTracing {
		router.Use(otelgin.Middleware(tracingServiceName))
	}

	v0 := router.Group(APIPrefix)
	v0.GET("/health", a.handleHealth)
	v0.GET("/height", a.handleHeight)

	v0.POST("/calls", a.handleSubmitCall)
	v0.GET("/calls", a.handleListCalls)
	v0.GET("/calls/:id", a.handleGetCall)
	v0.POST("/query/:method", a.handleQuery)

	v0.GET("/accounts/:account/balance", a.handleBalance)
	v0.GET("/accounts/:account/tokens", a.handleAccountTokens)
	v0.GET(
		"/researchers/:account",
		a.queryHandler(ledger.MethodGetResearcherProfile, accountArgs),
	)

	v0.GET("/proposals", a.handleListProposals)
	v0.GET("/proposals/:id", a.queryHandler(ledger.MethodGetProposal, idArgs))
	v0.GET("/proposals/:id/milestones", a.handleProposalMilestones)
	v0.GET("/proposals/:id/contributions", a.handleProposalContributions)
	v0.GET("/milestones/:id", a.queryHandler(ledger.MethodGetMilestone, idArgs))
	v0.GET(
		"/contributions/:id",
		a.queryHandler(ledger.MethodGetContribution, idArgs),
	)

	v0.GET("/tokens/last", a.queryHandler(ledger.MethodGetLastTokenID, nil))
	v0.GET("/tokens/:id", a.queryHandler(ledger.MethodGetToken, idArgs))
	v0.GET("/tokens/:id/uri", a.queryHandler(ledger.MethodGetTokenURI, idArgs))
	v0.GET("/tokens/:id/owner", a.queryHandler(ledger.MethodGetOwner, idArgs))

	v0.GET("/counter", a.queryHandler(ledger.MethodGetCounter, nil))
	return router
}

// Handler returns the HTTP handler serving the API routes
func (a *API) Handler() http.Handler {
	return a.engine
}

// Addr returns the bound listener address, or nil when not started
func (a *API) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Start starts the HTTP server in a background goroutine. The server shuts
// down when ctx is cancelled.
func (a *API) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.engine,
		ReadHeaderTimeout: 60 * time.Second,
	}
	// Bind first so port conflicts are reported to the caller
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	a.httpServer = server
	a.addr = ln.Addr()
	a.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	a.logger.Info(
		"API listener started on " + ln.Addr().String(),
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		if a.httpServer != server {
			a.mu.Unlock()
			return
		}
		a.httpServer = nil
		a.addr = nil
		a.mu.Unlock()
		a.logger.Debug("context cancelled, shutting down API server")
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			30*time.Second,
		)
		defer cancel()
		//nolint:contextcheck
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (a *API) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.addr = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	a.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}
