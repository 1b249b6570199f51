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

// AccessRouter defines the routes for access grant management.
func AccessRouter(eng *engine.Engine) http.Handler {
	routes := &accessRoutes{engine: eng}

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(requireScopes(eng, scopes.Basic))
		r.Get("/", routes.searchAccess)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireScopes(eng, scopes.Admin))
		r.Post("/", routes.grantAccess)
		r.Delete("/", routes.revokeAccess)
	})

	return r
}

type accessRoutes struct {
	engine *engine.Engine
}

type accessRequest struct {
	Client string `json:"client"`
	Scope  string `json:"scope"`
}

type accessResponse struct {
	Client string `json:"client"`
	Scope  string `json:"scope"`
}

type accessListResponse struct {
	Access []accessResponse `json:"access"`
}

func (a *accessRoutes) grantAccess(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	req, ok := decodeAccessRequest(w, r)
	if !ok {
		return
	}

	if err := a.engine.GrantAccess(r.Context(), principal.Name, req.Client, req.Scope); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accessResponse(req))
}

func (a *accessRoutes) searchAccess(w http.ResponseWriter, r *http.Request) {
	clientSubstr := r.URL.Query().Get("client")
	scopeSubstr := r.URL.Query().Get("scope")

	recs, err := a.engine.SearchAccess(r.Context(), clientSubstr, scopeSubstr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accessListResponse{Access: toAccessResponses(recs)})
}

func (a *accessRoutes) revokeAccess(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	req, ok := decodeAccessRequest(w, r)
	if !ok {
		return
	}

	if err := a.engine.RevokeAccess(r.Context(), principal.Name, req.Client, req.Scope); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeAccessRequest(w http.ResponseWriter, r *http.Request) (accessRequest, bool) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Client == "" || req.Scope == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "client and scope are required"})
		return accessRequest{}, false
	}
	return req, true
}

func toAccessResponses(recs []storage.AccessRecord) []accessResponse {
	out := make([]accessResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, accessResponse{Client: rec.Client, Scope: rec.Scope})
	}
	return out
}
