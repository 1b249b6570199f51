// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stacklok/wolfauth/pkg/engine"
	"github.com/stacklok/wolfauth/pkg/logger"
	"github.com/stacklok/wolfauth/pkg/storage"
	"github.com/stacklok/wolfauth/pkg/tokens"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps domain errors to HTTP statuses. Unrecognized errors are
// logged and reported as a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, storage.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already exists"})
	case errors.Is(err, engine.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, tokens.ErrInsufficientScope):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "insufficient scope"})
	case errors.Is(err, tokens.ErrInvalidToken),
		errors.Is(err, tokens.ErrTokenExpired),
		errors.Is(err, tokens.ErrWrongIssuer),
		errors.Is(err, tokens.ErrMissingClaims):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
	default:
		logger.Errorf("Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
