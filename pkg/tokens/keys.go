// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package tokens

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
)

// rsaKeyBits is the modulus size for generated signing keys.
const rsaKeyBits = 2048

// KeyPair holds the immutable RSA signing material for a Codec.
// Rotation is a file swap plus process restart; nothing mutates a KeyPair
// after construction.
type KeyPair struct {
	// Private is the RS256 signing key.
	Private *rsa.PrivateKey
	// Public is the verification key, also published via JWKS.
	Public *rsa.PublicKey
	// KeyID is the RFC 7638 JWK thumbprint of the public key.
	KeyID string
}

// NewKeyPair derives a KeyPair (public half and key ID) from a private key.
func NewKeyPair(private *rsa.PrivateKey) (*KeyPair, error) {
	public := &private.PublicKey
	keyID, err := DeriveKeyID(public)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Private: private, Public: public, KeyID: keyID}, nil
}

// LoadKeyPair reads an RSA private key PEM file and derives the key pair.
// Supports PKCS1 and PKCS8 encodings, and legacy password-encrypted PEM
// blocks when password is non-empty.
func LoadKeyPair(path, password string) (*KeyPair, error) {
	private, err := LoadSigningKey(path, password)
	if err != nil {
		return nil, err
	}
	return NewKeyPair(private)
}

// LoadSigningKey loads an RSA private key from a PEM file.
func LoadSigningKey(path, password string) (*rsa.PrivateKey, error) {
	keyPEM, err := os.ReadFile(path) // #nosec G304 - path is provided by user via CLI flag or config
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from signing key")
	}

	der := block.Bytes
	//nolint:staticcheck // legacy encrypted PEM keys are still in the field
	if x509.IsEncryptedPEMBlock(block) {
		if password == "" {
			return nil, fmt.Errorf("signing key is encrypted but no password was provided")
		}
		//nolint:staticcheck
		der, err = x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt signing key: %w", err)
		}
	}

	// Try PKCS1 first
	if rsaKey, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return rsaKey, nil
	}

	// Try PKCS8
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key is %T, want RSA", key)
	}
	return rsaKey, nil
}

// LoadVerifyingKey loads an RSA public key from a PEM file.
// Supports PKIX and PKCS1 encodings.
func LoadVerifyingKey(path string) (*rsa.PublicKey, error) {
	keyPEM, err := os.ReadFile(path) // #nosec G304 - path is provided by user via CLI flag or config
	if err != nil {
		return nil, fmt.Errorf("failed to read verifying key: %w", err)
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from verifying key")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("verifying key is %T, want RSA", key)
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verifying key: %w", err)
	}
	return rsaKey, nil
}

// DeriveKeyID computes a key ID from the public key using RFC 7638 JWK Thumbprint.
// The thumbprint is computed as base64url(SHA-256(JWK canonical form)).
func DeriveKeyID(key *rsa.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: key}

	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// JWKS returns the public half of the key pair as a JSON Web Key Set for
// the well-known endpoint.
func (kp *KeyPair) JWKS() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       kp.Public,
			KeyID:     kp.KeyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}},
	}
}

// GenerateKeyPair creates a fresh RSA-2048 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	return NewKeyPair(private)
}

// EncodePrivateKeyPEM renders the private key as a PKCS8 PEM block.
func (kp *KeyPair) EncodePrivateKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kp.Private)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// EncodePublicKeyPEM renders the public key as a PKIX PEM block.
func (kp *KeyPair) EncodePublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(kp.Public)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
