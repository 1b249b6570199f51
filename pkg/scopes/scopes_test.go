// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package scopes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeSet(t *testing.T) {
	t.Parallel()

	set := NewScopeSet([]string{"basic", "reports", "basic"})

	assert.True(t, set.Has("basic"))
	assert.True(t, set.Has("reports"))
	assert.False(t, set.Has("admin"))
	assert.Equal(t, 2, set.Len(), "duplicates collapse")
	assert.Equal(t, []string{"basic", "reports"}, set.Names())
}

func TestScopeSetEmpty(t *testing.T) {
	t.Parallel()

	set := NewScopeSet(nil)

	assert.False(t, set.Has("basic"))
	assert.False(t, set.IsAdmin())
	assert.False(t, set.IsChad())
	assert.Empty(t, set.Names())
}

func TestScopeSetRolePredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scopes  []string
		isAdmin bool
		isChad  bool
	}{
		{name: "plain client", scopes: []string{"basic"}, isAdmin: false, isChad: false},
		{name: "admin", scopes: []string{"basic", "admin"}, isAdmin: true, isChad: false},
		{name: "chad without admin", scopes: []string{"CHAD"}, isAdmin: false, isChad: true},
		{name: "admin and chad", scopes: []string{"admin", "CHAD"}, isAdmin: true, isChad: true},
		{name: "case sensitive", scopes: []string{"chad", "Admin"}, isAdmin: false, isChad: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			set := NewScopeSet(tt.scopes)
			assert.Equal(t, tt.isAdmin, set.IsAdmin())
			assert.Equal(t, tt.isChad, set.IsChad())
		})
	}
}

func TestReserved(t *testing.T) {
	t.Parallel()

	assert.True(t, Reserved(Admin))
	assert.True(t, Reserved(Chad))
	assert.False(t, Reserved(Basic))
	assert.False(t, Reserved("reports"))
	assert.False(t, Reserved("chad"))
}
