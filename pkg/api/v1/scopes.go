// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/wolfauth/pkg/engine"
	"github.com/stacklok/wolfauth/pkg/scopes"
	"github.com/stacklok/wolfauth/pkg/storage"
)

// ScopesRouter defines the routes for scope management.
func ScopesRouter(eng *engine.Engine) http.Handler {
	routes := &scopeRoutes{engine: eng}

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(requireScopes(eng, scopes.Basic))
		r.Get("/", routes.searchScopes)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireScopes(eng, scopes.Admin))
		r.Post("/", routes.createScope)
		r.Delete("/{name}", routes.deleteScope)
	})

	return r
}

type scopeRoutes struct {
	engine *engine.Engine
}

type createScopeRequest struct {
	// Name of the scope to create
	Name string `json:"name"`
}

type scopeResponse struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

type scopeListResponse struct {
	Scopes []scopeResponse `json:"scopes"`
}

func (s *scopeRoutes) createScope(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req createScopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "scope name is required"})
		return
	}

	if err := s.engine.CreateScope(r.Context(), principal.Name, req.Name); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, scopeResponse{Name: req.Name, Owner: principal.Name})
}

func (s *scopeRoutes) searchScopes(w http.ResponseWriter, r *http.Request) {
	nameSubstr := r.URL.Query().Get("name")
	ownerSubstr := r.URL.Query().Get("owner")

	recs, err := s.engine.SearchScopes(r.Context(), nameSubstr, ownerSubstr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scopeListResponse{Scopes: toScopeResponses(recs)})
}

func (s *scopeRoutes) deleteScope(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := s.engine.DeleteScope(r.Context(), principal.Name, name); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toScopeResponses(recs []storage.ScopeRecord) []scopeResponse {
	out := make([]scopeResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, scopeResponse{Name: rec.Name, Owner: rec.Owner})
	}
	return out
}
