// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package scopes

import (
	"context"
	"fmt"
)

// GrantLister is the slice of the credential store the Resolver needs.
type GrantLister interface {
	ListClientScopes(ctx context.Context, client string) ([]string, error)
}

// Resolver answers scope-possession questions from the store of record.
// Grant changes take effect on the next resolution; nothing is cached.
type Resolver struct {
	grants GrantLister
}

// NewResolver creates a Resolver backed by the given grant store.
func NewResolver(grants GrantLister) *Resolver {
	return &Resolver{grants: grants}
}

// GrantedScopes returns the full set of scopes currently granted to client.
func (r *Resolver) GrantedScopes(ctx context.Context, client string) (ScopeSet, error) {
	names, err := r.grants.ListClientScopes(ctx, client)
	if err != nil {
		return ScopeSet{}, fmt.Errorf("listing scopes for %q: %w", client, err)
	}
	return NewScopeSet(names), nil
}

// HasAll reports whether client holds every requested scope.
// An empty request is vacuously satisfied.
func (r *Resolver) HasAll(ctx context.Context, client string, requested []string) (bool, error) {
	granted, err := r.GrantedScopes(ctx, client)
	if err != nil {
		return false, err
	}
	for _, name := range requested {
		if !granted.Has(name) {
			return false, nil
		}
	}
	return true, nil
}

// HasAny reports whether client holds at least one requested scope.
// An empty request is never satisfied.
func (r *Resolver) HasAny(ctx context.Context, client string, requested []string) (bool, error) {
	granted, err := r.GrantedScopes(ctx, client)
	if err != nil {
		return false, err
	}
	for _, name := range requested {
		if granted.Has(name) {
			return true, nil
		}
	}
	return false, nil
}
