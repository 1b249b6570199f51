// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/wolfauth/pkg/engine"
	"github.com/stacklok/wolfauth/pkg/scopes"
)

// ClientsRouter defines the routes for client management.
func ClientsRouter(eng *engine.Engine) http.Handler {
	routes := &clientRoutes{engine: eng}

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(requireScopes(eng, scopes.Basic))
		r.Get("/", routes.searchClients)
		r.Get("/me", routes.whoAmI)
		r.Get("/{name}", routes.getClient)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireScopes(eng, scopes.Admin))
		r.Post("/", routes.createClient)
		r.Put("/{name}/disable", routes.setDisabled)
		r.Put("/{name}/resetkey", routes.resetKey)
		r.Delete("/{name}", routes.deleteClient)
	})

	return r
}

type clientRoutes struct {
	engine *engine.Engine
}

type createClientRequest struct {
	// Name of the client to create
	Name string `json:"name"`
}

type createClientResponse struct {
	Client string `json:"client"`
	// Key is the one-time secret; it is never shown again.
	Key    string `json:"key"`
	Caller string `json:"caller"`
}

type clientResponse struct {
	Name     string `json:"name"`
	Disabled bool   `json:"disabled"`
}

type whoAmIResponse struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type setDisabledRequest struct {
	Disabled bool `json:"disabled"`
}

type resetKeyResponse struct {
	Client string `json:"client"`
	Key    string `json:"key"`
}

type clientListResponse struct {
	Clients []string `json:"clients"`
}

// whoAmI reports the principal asserted by the presented token.
func (c *clientRoutes) whoAmI(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no principal"})
		return
	}
	writeJSON(w, http.StatusOK, whoAmIResponse{
		Name:   principal.Name,
		Scopes: principal.Scopes.Names(),
	})
}

func (c *clientRoutes) createClient(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "client name is required"})
		return
	}

	key, err := c.engine.CreateClient(r.Context(), principal.Name, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createClientResponse{
		Client: req.Name,
		Key:    key,
		Caller: principal.Name,
	})
}

func (c *clientRoutes) getClient(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rec, err := c.engine.GetClient(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	// The secret hash never leaves the service.
	writeJSON(w, http.StatusOK, clientResponse{Name: rec.Name, Disabled: rec.Disabled})
}

func (c *clientRoutes) searchClients(w http.ResponseWriter, r *http.Request) {
	nameSubstr := r.URL.Query().Get("name")

	var disabled bool
	if raw := r.URL.Query().Get("disabled"); raw != "" {
		var err error
		disabled, err = strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "disabled must be a boolean"})
			return
		}
	}

	names, err := c.engine.SearchClients(r.Context(), nameSubstr, disabled)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, clientListResponse{Clients: names})
}

func (c *clientRoutes) setDisabled(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	name := chi.URLParam(r, "name")

	var req setDisabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := c.engine.SetClientDisabled(r.Context(), principal.Name, name, req.Disabled); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, clientResponse{Name: name, Disabled: req.Disabled})
}

func (c *clientRoutes) resetKey(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	name := chi.URLParam(r, "name")

	key, err := c.engine.ResetClientSecret(r.Context(), principal.Name, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resetKeyResponse{Client: name, Key: key})
}

func (c *clientRoutes) deleteClient(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := c.engine.DeleteClient(r.Context(), principal.Name, name); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
