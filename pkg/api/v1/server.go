// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package v1 contains the REST API for wolfauth.
package v1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/wolfauth/pkg/engine"
)

const requestTimeout = 30 * time.Second

// ServerOption configures the router built by NewServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares replaces the default middleware stack.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) { cfg.middlewares = mw }
}

// NewServer assembles the full HTTP surface: the token endpoint, the
// client/scope/access management API, JWKS, health and metrics.
func NewServer(eng *engine.Engine, opts ...ServerOption) http.Handler {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(requestTimeout),
			LoggingMiddleware,
			MetricsMiddleware,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(cfg.middlewares...)

	r.Mount("/api/v1/token", TokenRouter(eng))
	r.Mount("/api/v1/clients", ClientsRouter(eng))
	r.Mount("/api/v1/scopes", ScopesRouter(eng))
	r.Mount("/api/v1/access", AccessRouter(eng))
	r.Mount("/.well-known", WellKnownRouter(eng))
	r.Mount("/health", HealthcheckRouter())
	r.Handle("/metrics", MetricsHandler())

	return r
}
