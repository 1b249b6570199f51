// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/wolfauth/pkg/engine"
	"github.com/stacklok/wolfauth/pkg/logger"
)

// TokenRouter serves the OAuth-shaped token endpoint.
func TokenRouter(eng *engine.Engine) http.Handler {
	routes := &tokenRoutes{engine: eng}
	r := chi.NewRouter()
	r.Post("/", routes.issueToken)
	return r
}

type tokenRoutes struct {
	engine *engine.Engine
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// issueToken authenticates a client and returns a bearer token.
// The form mirrors the OAuth2 password grant: username, password, and a
// space-separated scope list. Requested scopes are merged with the basic
// scope and any reserved scopes the client holds before authorization.
func (t *tokenRoutes) issueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed form body"})
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username and password are required"})
		return
	}
	requested := strings.Fields(r.PostFormValue("scope"))

	merged, err := t.engine.MergeReservedScopes(ctx, username, requested)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := t.engine.Login(ctx, username, password, merged)
	if err != nil {
		if reason, ok := loginFailureReason(err); ok {
			logger.Debugw("login rejected", "client", username, "reason", reason)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: reason})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// loginFailureReason maps login errors to the machine-readable reasons the
// endpoint reports with a 401.
func loginFailureReason(err error) (string, bool) {
	switch {
	case errors.Is(err, engine.ErrClientNotFound):
		return "client_not_found", true
	case errors.Is(err, engine.ErrClientDisabled):
		return "client_disabled", true
	case errors.Is(err, engine.ErrInvalidSecret):
		return "invalid_secret", true
	case errors.Is(err, engine.ErrNotAuthorized):
		return "not_authorized", true
	default:
		return "", false
	}
}
