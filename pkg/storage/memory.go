// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for tests and development.
// All operations are safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]ClientRecord
	scopes  map[string]string              // scope name -> owner
	access  map[string]map[string]struct{} // client -> scope set
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]ClientRecord),
		scopes:  make(map[string]string),
		access:  make(map[string]map[string]struct{}),
	}
}

// Close is a no-op for the in-memory store.
func (*MemoryStore) Close() error { return nil }

// CreateClient inserts a new client.
func (m *MemoryStore) CreateClient(_ context.Context, name, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[name]; ok {
		return ErrAlreadyExists
	}
	m.clients[name] = ClientRecord{Name: name, SecretHash: secretHash}
	return nil
}

// GetClient fetches a client by name.
func (m *MemoryStore) GetClient(_ context.Context, name string) (ClientRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.clients[name]
	if !ok {
		return ClientRecord{}, ErrNotFound
	}
	return rec, nil
}

// SetClientDisabled updates the disabled flag.
func (m *MemoryStore) SetClientDisabled(_ context.Context, name string, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.clients[name]
	if !ok {
		return ErrNotFound
	}
	rec.Disabled = disabled
	m.clients[name] = rec
	return nil
}

// SetClientSecretHash replaces the stored secret hash.
func (m *MemoryStore) SetClientSecretHash(_ context.Context, name, secretHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.clients[name]
	if !ok {
		return ErrNotFound
	}
	rec.SecretHash = secretHash
	m.clients[name] = rec
	return nil
}

// DeleteClient removes a client. Its grants go with it; scopes it owns
// remain.
func (m *MemoryStore) DeleteClient(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[name]; !ok {
		return ErrNotFound
	}
	delete(m.clients, name)
	delete(m.access, name)
	return nil
}

// SearchClients returns matching client names, capped at SearchLimit.
func (m *MemoryStore) SearchClients(_ context.Context, nameSubstr string, disabled bool) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, rec := range m.clients {
		if rec.Disabled == disabled && containsFold(name, nameSubstr) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return capAt(names, SearchLimit), nil
}

// CreateScopeWithGrant inserts a scope and the owner's self-grant.
// Both happen under one lock, so a concurrent reader never sees the scope
// without its grant.
func (m *MemoryStore) CreateScopeWithGrant(_ context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scopes[name]; ok {
		return ErrAlreadyExists
	}
	m.scopes[name] = owner
	if m.access[owner] == nil {
		m.access[owner] = make(map[string]struct{})
	}
	m.access[owner][name] = struct{}{}
	return nil
}

// GetScopeOwner returns the owner recorded for a scope.
func (m *MemoryStore) GetScopeOwner(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.scopes[name]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

// DeleteScope removes a scope and every grant of it.
func (m *MemoryStore) DeleteScope(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scopes[name]; !ok {
		return ErrNotFound
	}
	delete(m.scopes, name)
	for _, scopeSet := range m.access {
		delete(scopeSet, name)
	}
	return nil
}

// SearchScopes returns matching scopes, capped at SearchLimit.
func (m *MemoryStore) SearchScopes(_ context.Context, nameSubstr, ownerSubstr string) ([]ScopeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []ScopeRecord
	for name, owner := range m.scopes {
		if containsFold(name, nameSubstr) && containsFold(owner, ownerSubstr) {
			recs = append(recs, ScopeRecord{Name: name, Owner: owner})
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
	return capAt(recs, SearchLimit), nil
}

// CreateAccess grants a scope to a client.
func (m *MemoryStore) CreateAccess(_ context.Context, client, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.access[client][scope]; ok {
		return ErrAlreadyExists
	}
	if m.access[client] == nil {
		m.access[client] = make(map[string]struct{})
	}
	m.access[client][scope] = struct{}{}
	return nil
}

// HasAccess reports whether the grant exists.
func (m *MemoryStore) HasAccess(_ context.Context, client, scope string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.access[client][scope]
	return ok, nil
}

// ListClientScopes returns all scope names granted to a client.
func (m *MemoryStore) ListClientScopes(_ context.Context, client string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopeSet := m.access[client]
	names := make([]string, 0, len(scopeSet))
	for name := range scopeSet {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteAccess revokes a grant.
func (m *MemoryStore) DeleteAccess(_ context.Context, client, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.access[client][scope]; !ok {
		return ErrNotFound
	}
	delete(m.access[client], scope)
	return nil
}

// SearchAccess returns matching grants, capped at SearchLimit.
func (m *MemoryStore) SearchAccess(_ context.Context, clientSubstr, scopeSubstr string) ([]AccessRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []AccessRecord
	for client, scopeSet := range m.access {
		if !containsFold(client, clientSubstr) {
			continue
		}
		for scope := range scopeSet {
			if containsFold(scope, scopeSubstr) {
				recs = append(recs, AccessRecord{Client: client, Scope: scope})
			}
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Client != recs[j].Client {
			return recs[i].Client < recs[j].Client
		}
		return recs[i].Scope < recs[j].Scope
	})
	return capAt(recs, SearchLimit), nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func capAt[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
