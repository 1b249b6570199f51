// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import "errors"

// Login and guard errors. Login failures are deliberately distinct so the
// token endpoint can report a machine-readable reason for each.
var (
	// ErrClientNotFound is returned when the login name matches no client.
	ErrClientNotFound = errors.New("client not found")

	// ErrClientDisabled is returned when the client exists but is disabled.
	ErrClientDisabled = errors.New("client disabled")

	// ErrInvalidSecret is returned when the presented secret does not match.
	ErrInvalidSecret = errors.New("invalid secret")

	// ErrNotAuthorized is returned when the client lacks a requested scope.
	ErrNotAuthorized = errors.New("not authorized for requested scopes")

	// ErrForbidden is returned when a privilege guard rejects an operation.
	ErrForbidden = errors.New("operation forbidden")
)
