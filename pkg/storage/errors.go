// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import "errors"

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a create collides with an
	// existing record.
	ErrAlreadyExists = errors.New("record already exists")
)
