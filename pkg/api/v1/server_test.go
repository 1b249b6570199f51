// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/wolfauth/pkg/engine"
	"github.com/stacklok/wolfauth/pkg/storage"
	"github.com/stacklok/wolfauth/pkg/tokens"
)

var (
	codecOnce sync.Once
	testCodec *tokens.Codec
)

func sharedCodec(t *testing.T) *tokens.Codec {
	t.Helper()
	codecOnce.Do(func() {
		keys, err := tokens.GenerateKeyPair()
		if err != nil {
			t.Fatalf("generating keys: %v", err)
		}
		testCodec, err = tokens.NewCodec(keys, "wolfauth-test")
		if err != nil {
			t.Fatalf("creating codec: %v", err)
		}
	})
	return testCodec
}

type testServer struct {
	handler    http.Handler
	engine     *engine.Engine
	store      *storage.MemoryStore
	seedSecret string
}

// newTestServer builds a full router over a bootstrapped in-memory store.
// The returned seed secret belongs to the wolfey super-administrator.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemoryStore()
	eng := engine.New(store, sharedCodec(t))

	secret, err := eng.Bootstrap(context.Background(), "")
	require.NoError(t, err)

	return &testServer{
		handler:    NewServer(eng),
		engine:     eng,
		store:      store,
		seedSecret: secret,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// login posts the OAuth-shaped form and returns the response.
func (ts *testServer) login(t *testing.T, username, password, scope string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	if scope != "" {
		form.Set("scope", scope)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// mustLogin returns a valid access token for the client.
func (ts *testServer) mustLogin(t *testing.T, username, password string) string {
	t.Helper()
	rec := ts.login(t, username, password, "")
	require.Equal(t, http.StatusOK, rec.Code, "login failed: %s", rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)
	return resp.AccessToken
}

// addClient creates a client through the API and returns its secret.
func (ts *testServer) addClient(t *testing.T, adminToken, name string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/clients", adminToken, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Key
}

func errorField(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTokenEndpointIssuesVerifiableToken(t *testing.T) {
	ts := newTestServer(t)

	token := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	principal, err := ts.engine.Authorize(token, []string{"admin"})
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultBootstrapClient, principal.Name)
	assert.True(t, principal.Scopes.IsChad(), "reserved scopes are merged into the token")
	assert.True(t, principal.Scopes.Has("basic"))
}

func TestTokenEndpointFailureReasons(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	aliceSecret := ts.addClient(t, chadToken, "alice")
	bobSecret := ts.addClient(t, chadToken, "bob")
	rec := ts.do(t, http.MethodPut, "/api/v1/clients/bob/disable", chadToken, map[string]bool{"disabled": true})
	require.Equal(t, http.StatusOK, rec.Code)

	// A client whose baseline grant was revoked cannot log in at all,
	// since the merge re-adds basic to every request.
	strippedSecret := ts.addClient(t, chadToken, "stripped")
	rec = ts.do(t, http.MethodDelete, "/api/v1/access", chadToken,
		map[string]string{"client": "stripped", "scope": "basic"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	tests := []struct {
		name       string
		username   string
		password   string
		scope      string
		wantReason string
	}{
		{name: "unknown client", username: "ghost", password: "x", wantReason: "client_not_found"},
		{name: "disabled client", username: "bob", password: bobSecret, wantReason: "client_disabled"},
		{name: "wrong secret", username: "alice", password: "wrong", wantReason: "invalid_secret"},
		{name: "unheld scope", username: "alice", password: aliceSecret,
			scope: "admin", wantReason: "not_authorized"},
		{name: "revoked baseline scope", username: "stripped", password: strippedSecret,
			wantReason: "not_authorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.login(t, tt.username, tt.password, tt.scope)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantReason, errorField(t, rec))
		})
	}
}

func TestTokenEndpointRejectsMissingCredentials(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.login(t, "", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	aliceSecret := ts.addClient(t, chadToken, "alice")
	aliceToken := ts.mustLogin(t, "alice", aliceSecret)

	t.Run("missing token", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/clients/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/clients/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("basic token cannot reach admin routes", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/clients", aliceToken, map[string]string{"name": "eve"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("basic token reads", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/clients/me", aliceToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "alice", resp.Name)
		assert.Equal(t, []string{"basic"}, resp.Scopes)
	})
}

func TestClientLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	key := ts.addClient(t, chadToken, "alice")
	assert.Len(t, key, 64)

	rec := ts.do(t, http.MethodPost, "/api/v1/clients", chadToken, map[string]string{"name": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/clients/alice", chadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Name     string `json:"name"`
		Disabled bool   `json:"disabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "alice", got.Name)
	assert.False(t, got.Disabled)
	assert.NotContains(t, rec.Body.String(), "hash", "secret material never leaves the service")

	rec = ts.do(t, http.MethodGet, "/api/v1/clients?name=ali", chadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Clients []string `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{"alice"}, list.Clients)

	rec = ts.do(t, http.MethodPut, "/api/v1/clients/alice/resetkey", chadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reset struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reset))
	assert.NotEqual(t, key, reset.Key)

	rec = ts.do(t, http.MethodDelete, "/api/v1/clients/alice", chadToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/clients/alice", chadToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditGuardOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	adminSecret := ts.addClient(t, chadToken, "admin2")
	rec := ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "admin2", "scope": "admin"})
	require.Equal(t, http.StatusCreated, rec.Code)

	ts.addClient(t, chadToken, "admin3")
	rec = ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "admin3", "scope": "admin"})
	require.Equal(t, http.StatusCreated, rec.Code)

	adminToken := ts.mustLogin(t, "admin2", adminSecret)

	// An admin may not disable another admin.
	rec = ts.do(t, http.MethodPut, "/api/v1/clients/admin3/disable", adminToken, map[string]bool{"disabled": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// CHAD may.
	rec = ts.do(t, http.MethodPut, "/api/v1/clients/admin3/disable", chadToken, map[string]bool{"disabled": true})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScopeLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	rec := ts.do(t, http.MethodPost, "/api/v1/scopes", chadToken, map[string]string{"name": "reports"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/scopes", chadToken, map[string]string{"name": "reports"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/scopes?name=rep", chadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Scopes []struct {
			Name  string `json:"name"`
			Owner string `json:"owner"`
		} `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Scopes, 1)
	assert.Equal(t, "reports", list.Scopes[0].Name)
	assert.Equal(t, engine.DefaultBootstrapClient, list.Scopes[0].Owner)

	rec = ts.do(t, http.MethodDelete, "/api/v1/scopes/reports", chadToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/scopes/reports", chadToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReservedScopeGuardOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	adminSecret := ts.addClient(t, chadToken, "admin2")
	rec := ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "admin2", "scope": "admin"})
	require.Equal(t, http.StatusCreated, rec.Code)
	adminToken := ts.mustLogin(t, "admin2", adminSecret)

	ts.addClient(t, chadToken, "alice")

	// Admin cannot grant a reserved scope.
	rec = ts.do(t, http.MethodPost, "/api/v1/access", adminToken,
		map[string]string{"client": "alice", "scope": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin cannot revoke the admin scope.
	rec = ts.do(t, http.MethodDelete, "/api/v1/access", adminToken,
		map[string]string{"client": "admin2", "scope": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// CHAD can do both.
	rec = ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "alice", "scope": "admin"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/v1/access", chadToken,
		map[string]string{"client": "alice", "scope": "admin"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAccessEndpoints(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)
	ts.addClient(t, chadToken, "alice")

	// Granting a nonexistent scope is a 404.
	rec := ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "alice", "scope": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Granting to a nonexistent client is a 404.
	rec = ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "ghost", "scope": "basic"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/scopes", chadToken,
		map[string]string{"name": "reports"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "alice", "scope": "reports"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/access", chadToken,
		map[string]string{"client": "alice", "scope": "reports"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/access?client=alice&scope=rep", chadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Access []struct {
			Client string `json:"client"`
			Scope  string `json:"scope"`
		} `json:"access"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Access, 1)
	assert.Equal(t, "alice", list.Access[0].Client)
	assert.Equal(t, "reports", list.Access[0].Scope)

	rec = ts.do(t, http.MethodDelete, "/api/v1/access", chadToken,
		map[string]string{"client": "alice", "scope": "reports"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/access", chadToken,
		map[string]string{"client": "alice", "scope": "reports"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJWKSEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// No authentication required; resource servers fetch this anonymously.
	rec := ts.do(t, http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age")

	var set struct {
		Keys []struct {
			Kid string `json:"kid"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			Kty string `json:"kty"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "RS256", set.Keys[0].Alg)
	assert.Equal(t, "sig", set.Keys[0].Use)
	assert.Equal(t, "RSA", set.Keys[0].Kty)
	assert.NotEmpty(t, set.Keys[0].Kid)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// Generate at least one sample first.
	_ = ts.do(t, http.MethodGet, "/health", "", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wolfauth_http_requests_total")
}

func TestSearchClientsDisabledFilter(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	ts.addClient(t, chadToken, "alice")
	ts.addClient(t, chadToken, "mallory")
	rec := ts.do(t, http.MethodPut, "/api/v1/clients/mallory/disable", chadToken, map[string]bool{"disabled": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/clients?disabled=true", chadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Clients []string `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{"mallory"}, list.Clients)

	rec = ts.do(t, http.MethodGet, "/api/v1/clients?disabled=garbage", chadToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "disabled must be a boolean", errorField(t, rec))
}

func TestSearchLimitOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	chadToken := ts.mustLogin(t, engine.DefaultBootstrapClient, ts.seedSecret)

	for i := 0; i < storage.SearchLimit+5; i++ {
		ts.addClient(t, chadToken, fmt.Sprintf("client-%03d", i))
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/clients?name=client-", chadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Clients []string `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Clients, storage.SearchLimit)
}
