// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the credential store contracts and records for
// clients, scopes and access grants.
//
// Implementations map their native conflict and missing-row conditions to
// the sentinel errors in this package so callers can branch with errors.Is.
package storage

import "context"

// SearchLimit caps the number of rows any search returns.
const SearchLimit = 30

// ClientRecord is a stored client credential.
type ClientRecord struct {
	// Name is the unique, immutable client identifier.
	Name string
	// SecretHash is the bcrypt hash of the client secret.
	SecretHash string
	// Disabled blocks the client from logging in when true.
	Disabled bool
}

// ScopeRecord is a stored permission scope.
type ScopeRecord struct {
	// Name is the unique, immutable scope identifier.
	Name string
	// Owner is the client name recorded at creation. It is not a foreign
	// key; deleting the owner leaves the scope in place.
	Owner string
}

// AccessRecord links a client to a scope it holds.
type AccessRecord struct {
	Client string
	Scope  string
}

// ClientStore persists client credentials.
type ClientStore interface {
	// CreateClient inserts a new client. Returns ErrAlreadyExists when the
	// name is taken.
	CreateClient(ctx context.Context, name, secretHash string) error

	// GetClient fetches a client by name. Returns ErrNotFound when absent.
	GetClient(ctx context.Context, name string) (ClientRecord, error)

	// SetClientDisabled updates the disabled flag. Returns ErrNotFound when
	// the client does not exist.
	SetClientDisabled(ctx context.Context, name string, disabled bool) error

	// SetClientSecretHash replaces the stored secret hash. Returns
	// ErrNotFound when the client does not exist.
	SetClientSecretHash(ctx context.Context, name, secretHash string) error

	// DeleteClient removes a client. Returns ErrNotFound when absent.
	DeleteClient(ctx context.Context, name string) error

	// SearchClients returns the names of clients whose name contains
	// nameSubstr (case-insensitive) and whose disabled flag matches,
	// capped at SearchLimit.
	SearchClients(ctx context.Context, nameSubstr string, disabled bool) ([]string, error)
}

// ScopeStore persists permission scopes.
type ScopeStore interface {
	// CreateScopeWithGrant inserts a scope and the owner's self-grant in a
	// single atomic step. Returns ErrAlreadyExists when the scope name is
	// taken; on failure no scope row remains.
	CreateScopeWithGrant(ctx context.Context, name, owner string) error

	// GetScopeOwner returns the owner recorded for a scope. Returns
	// ErrNotFound when the scope does not exist.
	GetScopeOwner(ctx context.Context, name string) (string, error)

	// DeleteScope removes a scope. Returns ErrNotFound when absent.
	// Existing grants of the scope are removed with it.
	DeleteScope(ctx context.Context, name string) error

	// SearchScopes returns scopes whose name and owner contain the given
	// substrings (case-insensitive), capped at SearchLimit.
	SearchScopes(ctx context.Context, nameSubstr, ownerSubstr string) ([]ScopeRecord, error)
}

// AccessStore persists client-to-scope grants.
type AccessStore interface {
	// CreateAccess grants a scope to a client. Returns ErrAlreadyExists
	// when the grant is already present.
	CreateAccess(ctx context.Context, client, scope string) error

	// HasAccess reports whether the grant exists.
	HasAccess(ctx context.Context, client, scope string) (bool, error)

	// ListClientScopes returns all scope names granted to a client.
	// An unknown client yields an empty list, not an error.
	ListClientScopes(ctx context.Context, client string) ([]string, error)

	// DeleteAccess revokes a grant. Returns ErrNotFound when absent.
	DeleteAccess(ctx context.Context, client, scope string) error

	// SearchAccess returns grants whose client and scope contain the given
	// substrings (case-insensitive), capped at SearchLimit.
	SearchAccess(ctx context.Context, clientSubstr, scopeSubstr string) ([]AccessRecord, error)
}

// Store aggregates the credential store contracts.
type Store interface {
	ClientStore
	ScopeStore
	AccessStore

	// Close releases any resources held by the store.
	Close() error
}
