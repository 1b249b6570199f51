// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the authentication and authorization rules over
// the credential store: the login state machine, reserved-scope handling,
// and the privilege guards protecting client, scope and grant mutations.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/stacklok/wolfauth/pkg/logger"
	"github.com/stacklok/wolfauth/pkg/scopes"
	"github.com/stacklok/wolfauth/pkg/secrets"
	"github.com/stacklok/wolfauth/pkg/storage"
	"github.com/stacklok/wolfauth/pkg/tokens"
)

// Engine enforces the authentication and authorization rules.
// All privilege checks resolve scopes from the store of record, so grant
// changes take effect on the next operation, not at token expiry.
type Engine struct {
	store    storage.Store
	resolver *scopes.Resolver
	codec    *tokens.Codec
}

// New creates an Engine over the given store and token codec.
func New(store storage.Store, codec *tokens.Codec) *Engine {
	return &Engine{
		store:    store,
		resolver: scopes.NewResolver(store),
		codec:    codec,
	}
}

// Login authenticates a client and issues a token carrying the requested
// scopes. The checks short-circuit in a fixed order: existence, disabled
// flag, secret, then scope possession.
func (e *Engine) Login(ctx context.Context, name, secret string, requested []string) (string, error) {
	rec, err := e.store.GetClient(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrClientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up client: %w", err)
	}

	if rec.Disabled {
		return "", ErrClientDisabled
	}

	if !secrets.Verify(secret, rec.SecretHash) {
		return "", ErrInvalidSecret
	}

	ok, err := e.resolver.HasAll(ctx, name, requested)
	if err != nil {
		return "", fmt.Errorf("resolving scopes: %w", err)
	}
	if !ok {
		return "", ErrNotAuthorized
	}

	token, err := e.codec.Issue(name, requested)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}

	logger.Infow("issued token", "client", name, "scopes", requested)
	return token, nil
}

// MergeReservedScopes returns the union of the requested scopes, the basic
// scope, and any reserved scopes the client currently holds. The token
// endpoint applies this before Login so every token carries the client's
// privilege markers.
func (e *Engine) MergeReservedScopes(ctx context.Context, name string, requested []string) ([]string, error) {
	granted, err := e.resolver.GrantedScopes(ctx, name)
	if err != nil {
		return nil, err
	}

	merged := append([]string{scopes.Basic}, requested...)
	if granted.IsAdmin() {
		merged = append(merged, scopes.Admin)
	}
	if granted.IsChad() {
		merged = append(merged, scopes.Chad)
	}
	return scopes.NewScopeSet(merged).Names(), nil
}

// Authorize verifies a token against the required scopes and returns the
// principal it asserts.
func (e *Engine) Authorize(token string, required []string) (tokens.Principal, error) {
	return e.codec.Verify(token, required)
}

// Decode extracts the principal from a token without an audience check.
func (e *Engine) Decode(token string) (tokens.Principal, error) {
	return e.codec.Decode(token)
}

// JWKS exposes the codec's public key set for the well-known endpoint.
func (e *Engine) JWKS() jose.JSONWebKeySet {
	return e.codec.JWKS()
}

// CreateClient registers a new client and returns its one-time secret.
// Every client is born holding the basic scope; the token endpoint merges
// basic into every request, so a client without it could never log in.
func (e *Engine) CreateClient(ctx context.Context, actor, name string) (string, error) {
	plaintext, hash, err := secrets.Issue()
	if err != nil {
		return "", err
	}
	if err := e.store.CreateClient(ctx, name, hash); err != nil {
		return "", err
	}
	if err := e.store.CreateAccess(ctx, name, scopes.Basic); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return "", fmt.Errorf("granting baseline scope: %w", err)
	}
	logger.Infow("created client", "client", name, "actor", actor)
	return plaintext, nil
}

// GetClient fetches a client record.
func (e *Engine) GetClient(ctx context.Context, name string) (storage.ClientRecord, error) {
	return e.store.GetClient(ctx, name)
}

// SearchClients returns client names matching the filters.
func (e *Engine) SearchClients(ctx context.Context, nameSubstr string, disabled bool) ([]string, error) {
	return e.store.SearchClients(ctx, nameSubstr, disabled)
}

// SetClientDisabled flips a client's disabled flag, subject to the edit
// guard.
func (e *Engine) SetClientDisabled(ctx context.Context, actor, target string, disabled bool) error {
	if err := e.authorizeClientEdit(ctx, actor, target); err != nil {
		return err
	}
	if err := e.store.SetClientDisabled(ctx, target, disabled); err != nil {
		return err
	}
	logger.Infow("set client disabled", "client", target, "disabled", disabled, "actor", actor)
	return nil
}

// ResetClientSecret replaces a client's secret and returns the new one-time
// plaintext, subject to the edit guard.
func (e *Engine) ResetClientSecret(ctx context.Context, actor, target string) (string, error) {
	if err := e.authorizeClientEdit(ctx, actor, target); err != nil {
		return "", err
	}
	plaintext, hash, err := secrets.Issue()
	if err != nil {
		return "", err
	}
	if err := e.store.SetClientSecretHash(ctx, target, hash); err != nil {
		return "", err
	}
	logger.Infow("reset client secret", "client", target, "actor", actor)
	return plaintext, nil
}

// DeleteClient removes a client, subject to the edit guard.
func (e *Engine) DeleteClient(ctx context.Context, actor, target string) error {
	if err := e.authorizeClientEdit(ctx, actor, target); err != nil {
		return err
	}
	if err := e.store.DeleteClient(ctx, target); err != nil {
		return err
	}
	logger.Infow("deleted client", "client", target, "actor", actor)
	return nil
}

// CreateScope creates a scope owned by the actor, granting it to the actor
// in the same step. Reserved scope names require a CHAD actor.
func (e *Engine) CreateScope(ctx context.Context, actor, name string) error {
	if scopes.Reserved(name) {
		if err := e.requireChad(ctx, actor); err != nil {
			return err
		}
	}
	if err := e.store.CreateScopeWithGrant(ctx, name, actor); err != nil {
		return err
	}
	logger.Infow("created scope", "scope", name, "owner", actor)
	return nil
}

// SearchScopes returns scopes matching the filters.
func (e *Engine) SearchScopes(ctx context.Context, nameSubstr, ownerSubstr string) ([]storage.ScopeRecord, error) {
	return e.store.SearchScopes(ctx, nameSubstr, ownerSubstr)
}

// DeleteScope removes a scope. Only the recorded owner or a CHAD actor may
// delete it.
func (e *Engine) DeleteScope(ctx context.Context, actor, name string) error {
	owner, err := e.store.GetScopeOwner(ctx, name)
	if err != nil {
		return err
	}
	if owner != actor {
		if err := e.requireChad(ctx, actor); err != nil {
			return err
		}
	}
	if err := e.store.DeleteScope(ctx, name); err != nil {
		return err
	}
	logger.Infow("deleted scope", "scope", name, "actor", actor)
	return nil
}

// GrantAccess grants a scope to a client. Granting a reserved scope
// requires a CHAD actor. Both the client and the scope must exist.
func (e *Engine) GrantAccess(ctx context.Context, actor, client, scope string) error {
	if scopes.Reserved(scope) {
		if err := e.requireChad(ctx, actor); err != nil {
			return err
		}
	}
	if _, err := e.store.GetClient(ctx, client); err != nil {
		return err
	}
	if _, err := e.store.GetScopeOwner(ctx, scope); err != nil {
		return err
	}
	if err := e.store.CreateAccess(ctx, client, scope); err != nil {
		return err
	}
	logger.Infow("granted access", "client", client, "scope", scope, "actor", actor)
	return nil
}

// RevokeAccess removes a grant. Revoking the admin scope requires a CHAD
// actor.
func (e *Engine) RevokeAccess(ctx context.Context, actor, client, scope string) error {
	if scope == scopes.Admin {
		if err := e.requireChad(ctx, actor); err != nil {
			return err
		}
	}
	if err := e.store.DeleteAccess(ctx, client, scope); err != nil {
		return err
	}
	logger.Infow("revoked access", "client", client, "scope", scope, "actor", actor)
	return nil
}

// SearchAccess returns grants matching the filters.
func (e *Engine) SearchAccess(ctx context.Context, clientSubstr, scopeSubstr string) ([]storage.AccessRecord, error) {
	return e.store.SearchAccess(ctx, clientSubstr, scopeSubstr)
}

// GrantedScopes returns the scopes currently granted to a client.
func (e *Engine) GrantedScopes(ctx context.Context, client string) (scopes.ScopeSet, error) {
	return e.resolver.GrantedScopes(ctx, client)
}

// authorizeClientEdit enforces the edit guard for disable, secret reset and
// delete. A target holding admin may only be edited by a CHAD actor, even
// when the actor is the target. Otherwise self-edits are allowed, and any
// other edit requires an admin actor.
func (e *Engine) authorizeClientEdit(ctx context.Context, actor, target string) error {
	targetScopes, err := e.resolver.GrantedScopes(ctx, target)
	if err != nil {
		return err
	}

	if targetScopes.IsAdmin() {
		return e.requireChad(ctx, actor)
	}

	if actor == target {
		return nil
	}

	actorScopes, err := e.resolver.GrantedScopes(ctx, actor)
	if err != nil {
		return err
	}
	if !actorScopes.IsAdmin() && !actorScopes.IsChad() {
		return fmt.Errorf("%w: %q may not edit %q", ErrForbidden, actor, target)
	}
	return nil
}

// requireChad checks the actor's current grants for the CHAD scope.
func (e *Engine) requireChad(ctx context.Context, actor string) error {
	actorScopes, err := e.resolver.GrantedScopes(ctx, actor)
	if err != nil {
		return err
	}
	if !actorScopes.IsChad() {
		return fmt.Errorf("%w: %q lacks the %s scope", ErrForbidden, actor, scopes.Chad)
	}
	return nil
}
