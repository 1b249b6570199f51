// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreClients(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateClient(ctx, "alice", "hash-1"))
	assert.ErrorIs(t, store.CreateClient(ctx, "alice", "hash-2"), ErrAlreadyExists)

	rec, err := store.GetClient(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ClientRecord{Name: "alice", SecretHash: "hash-1"}, rec)

	_, err = store.GetClient(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetClientDisabled(ctx, "alice", true))
	rec, err = store.GetClient(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, rec.Disabled)

	require.NoError(t, store.SetClientSecretHash(ctx, "alice", "hash-2"))
	rec, err = store.GetClient(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", rec.SecretHash)

	assert.ErrorIs(t, store.SetClientDisabled(ctx, "bob", true), ErrNotFound)
	assert.ErrorIs(t, store.SetClientSecretHash(ctx, "bob", "x"), ErrNotFound)

	require.NoError(t, store.DeleteClient(ctx, "alice"))
	assert.ErrorIs(t, store.DeleteClient(ctx, "alice"), ErrNotFound)
}

func TestMemoryStoreSearchClients(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateClient(ctx, "Payments-API", "h"))
	require.NoError(t, store.CreateClient(ctx, "payroll", "h"))
	require.NoError(t, store.CreateClient(ctx, "reports", "h"))
	require.NoError(t, store.SetClientDisabled(ctx, "payroll", true))

	names, err := store.SearchClients(ctx, "pay", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Payments-API"}, names, "case-insensitive substring, disabled filtered out")

	names, err = store.SearchClients(ctx, "pay", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"payroll"}, names)

	names, err = store.SearchClients(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Payments-API", "reports"}, names, "empty substring matches all")
}

func TestMemoryStoreSearchLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < SearchLimit+10; i++ {
		require.NoError(t, store.CreateClient(ctx, fmt.Sprintf("client-%03d", i), "h"))
	}

	names, err := store.SearchClients(ctx, "client", false)
	require.NoError(t, err)
	assert.Len(t, names, SearchLimit)
}

func TestMemoryStoreScopes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateScopeWithGrant(ctx, "reports", "alice"))
	assert.ErrorIs(t, store.CreateScopeWithGrant(ctx, "reports", "bob"), ErrAlreadyExists)

	owner, err := store.GetScopeOwner(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	// Creation self-grants the owner.
	held, err := store.HasAccess(ctx, "alice", "reports")
	require.NoError(t, err)
	assert.True(t, held)

	_, err = store.GetScopeOwner(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteScope(ctx, "reports"))
	assert.ErrorIs(t, store.DeleteScope(ctx, "reports"), ErrNotFound)

	// Deleting the scope revokes its grants.
	held, err = store.HasAccess(ctx, "alice", "reports")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestMemoryStoreSearchScopes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateScopeWithGrant(ctx, "reports", "alice"))
	require.NoError(t, store.CreateScopeWithGrant(ctx, "Reporting-v2", "bob"))
	require.NoError(t, store.CreateScopeWithGrant(ctx, "billing", "alice"))

	recs, err := store.SearchScopes(ctx, "report", "")
	require.NoError(t, err)
	assert.Equal(t, []ScopeRecord{
		{Name: "Reporting-v2", Owner: "bob"},
		{Name: "reports", Owner: "alice"},
	}, recs)

	recs, err = store.SearchScopes(ctx, "", "ali")
	require.NoError(t, err)
	assert.Equal(t, []ScopeRecord{
		{Name: "billing", Owner: "alice"},
		{Name: "reports", Owner: "alice"},
	}, recs)
}

func TestMemoryStoreAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateAccess(ctx, "alice", "reports"))
	assert.ErrorIs(t, store.CreateAccess(ctx, "alice", "reports"), ErrAlreadyExists)
	require.NoError(t, store.CreateAccess(ctx, "alice", "billing"))
	require.NoError(t, store.CreateAccess(ctx, "bob", "reports"))

	held, err := store.HasAccess(ctx, "alice", "reports")
	require.NoError(t, err)
	assert.True(t, held)

	held, err = store.HasAccess(ctx, "bob", "billing")
	require.NoError(t, err)
	assert.False(t, held)

	names, err := store.ListClientScopes(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "reports"}, names)

	names, err = store.ListClientScopes(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.DeleteAccess(ctx, "alice", "reports"))
	assert.ErrorIs(t, store.DeleteAccess(ctx, "alice", "reports"), ErrNotFound)
}

func TestMemoryStoreSearchAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateAccess(ctx, "alice", "reports"))
	require.NoError(t, store.CreateAccess(ctx, "alice", "billing"))
	require.NoError(t, store.CreateAccess(ctx, "bob", "reports"))

	recs, err := store.SearchAccess(ctx, "", "rep")
	require.NoError(t, err)
	assert.Equal(t, []AccessRecord{
		{Client: "alice", Scope: "reports"},
		{Client: "bob", Scope: "reports"},
	}, recs)

	recs, err = store.SearchAccess(ctx, "ALICE", "")
	require.NoError(t, err)
	assert.Equal(t, []AccessRecord{
		{Client: "alice", Scope: "billing"},
		{Client: "alice", Scope: "reports"},
	}, recs)
}

func TestMemoryStoreDeleteClientDropsGrants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateClient(ctx, "alice", "h"))
	require.NoError(t, store.CreateScopeWithGrant(ctx, "reports", "alice"))
	require.NoError(t, store.DeleteClient(ctx, "alice"))

	names, err := store.ListClientScopes(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, names)

	// The scope survives with an orphaned owner.
	owner, err := store.GetScopeOwner(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}
