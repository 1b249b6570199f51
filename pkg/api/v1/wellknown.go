// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/wolfauth/pkg/engine"
)

// WellKnownRouter serves the JWKS endpoint so resource servers can verify
// tokens offline.
func WellKnownRouter(eng *engine.Engine) http.Handler {
	routes := &wellKnownRoutes{engine: eng}
	r := chi.NewRouter()
	r.Get("/jwks.json", routes.jwks)
	return r
}

type wellKnownRoutes struct {
	engine *engine.Engine
}

func (wk *wellKnownRoutes) jwks(w http.ResponseWriter, _ *http.Request) {
	// The key set only changes on restart; let clients cache it.
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, wk.engine.JWKS())
}
