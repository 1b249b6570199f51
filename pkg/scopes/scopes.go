// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scopes models permission scopes and the sets of them a client holds.
//
// There is no scope hierarchy. A scope grants exactly itself; privileged
// behavior is expressed as derived queries over a client's granted set.
package scopes

import "sort"

// Well-known scope names.
const (
	// Basic is granted implicitly with every token request.
	Basic = "basic"
	// Admin marks a client as an administrator.
	Admin = "admin"
	// Chad marks a client as a super-administrator.
	Chad = "CHAD"
)

// Reserved reports whether name is a privileged scope whose creation,
// granting and (for admin) revocation require a CHAD actor.
func Reserved(name string) bool {
	return name == Admin || name == Chad
}

// ScopeSet is an immutable set of scope names.
type ScopeSet struct {
	names map[string]struct{}
}

// NewScopeSet builds a ScopeSet from a list of scope names.
// Duplicates are collapsed.
func NewScopeSet(names []string) ScopeSet {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return ScopeSet{names: set}
}

// Has reports whether the set contains the given scope.
func (s ScopeSet) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// IsAdmin reports whether the set carries the admin scope.
func (s ScopeSet) IsAdmin() bool { return s.Has(Admin) }

// IsChad reports whether the set carries the CHAD scope.
func (s ScopeSet) IsChad() bool { return s.Has(Chad) }

// Len returns the number of scopes in the set.
func (s ScopeSet) Len() int { return len(s.names) }

// Names returns the scope names in sorted order.
func (s ScopeSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
