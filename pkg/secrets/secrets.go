// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package secrets generates and verifies client secrets.
//
// Secrets are high-entropy random strings handed to a client exactly once,
// at creation or reset. Only the bcrypt hash is ever persisted.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// secretBytes is the raw entropy per secret. 32 bytes hex-encodes to a
// 64-character string.
const secretBytes = 32

// Issue generates a fresh client secret and its bcrypt hash.
// The plaintext is returned to be shown to the caller once; persist only
// the hash.
func Issue() (plaintext string, hash string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating secret: %w", err)
	}
	plaintext = hex.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing secret: %w", err)
	}
	return plaintext, string(hashed), nil
}

// Verify reports whether plaintext matches the stored bcrypt hash.
func Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
