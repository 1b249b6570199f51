// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tokens issues and verifies RS256-signed access tokens.
//
// A Codec is constructed once from a key pair and an issuer name, then
// injected wherever tokens are minted or checked. There is no package-level
// key state.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/stacklok/wolfauth/pkg/scopes"
)

// DefaultLifetime is the token validity window when none is configured.
const DefaultLifetime = 30 * time.Minute

// Verification errors. Each failure mode is distinct so callers can map
// them to different responses.
var (
	// ErrInvalidToken covers malformed tokens and signature failures.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrWrongIssuer is returned when the token was minted by a different
	// issuer.
	ErrWrongIssuer = errors.New("token issuer mismatch")

	// ErrMissingClaims is returned when a required claim is absent.
	ErrMissingClaims = errors.New("token missing required claims")

	// ErrInsufficientScope is returned by Verify when the token's audience
	// does not cover every required scope.
	ErrInsufficientScope = errors.New("token does not cover required scopes")
)

// Principal is the identity a verified token asserts.
type Principal struct {
	// Name is the client the token was issued to.
	Name string
	// Scopes are the scopes baked into the token at issuance. They reflect
	// the grants at login time, not the current store state.
	Scopes scopes.ScopeSet
}

// Codec signs and verifies access tokens with a fixed key pair.
type Codec struct {
	keys     *KeyPair
	issuer   string
	lifetime time.Duration
	now      func() time.Time
	signer   jose.Signer
}

// Option configures a Codec.
type Option func(*Codec)

// WithLifetime overrides the default token lifetime.
func WithLifetime(d time.Duration) Option {
	return func(c *Codec) { c.lifetime = d }
}

// WithClock overrides the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a Codec that signs as issuer with the given key pair.
func NewCodec(keys *KeyPair, issuer string, opts ...Option) (*Codec, error) {
	if issuer == "" {
		return nil, fmt.Errorf("issuer must not be empty")
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: keys.Private},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", keys.KeyID),
	)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	c := &Codec{
		keys:     keys,
		issuer:   issuer,
		lifetime: DefaultLifetime,
		now:      time.Now,
		signer:   signer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// JWKS returns the codec's public key set for the well-known endpoint.
func (c *Codec) JWKS() jose.JSONWebKeySet {
	return c.keys.JWKS()
}

// Issue mints a signed token for subject carrying scopeNames as audience.
func (c *Codec) Issue(subject string, scopeNames []string) (string, error) {
	claims := jwt.Claims{
		Subject:  subject,
		Issuer:   c.issuer,
		Audience: jwt.Audience(scopeNames),
		Expiry:   jwt.NewNumericDate(c.now().Add(c.lifetime)),
	}

	raw, err := jwt.Signed(c.signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return raw, nil
}

// Verify checks the token's signature and claims, then enforces the strict
// audience policy: every required scope must appear in the token's audience.
func (c *Codec) Verify(raw string, required []string) (Principal, error) {
	principal, claims, err := c.decode(raw)
	if err != nil {
		return Principal{}, err
	}

	audience := scopes.NewScopeSet(claims.Audience)
	for _, name := range required {
		if !audience.Has(name) {
			return Principal{}, fmt.Errorf("%w: missing %q", ErrInsufficientScope, name)
		}
	}

	return principal, nil
}

// Decode checks the token's signature and claims but applies no audience
// policy. Use it to learn who a token belongs to; callers needing current
// privileges must consult the scope resolver.
func (c *Codec) Decode(raw string) (Principal, error) {
	principal, _, err := c.decode(raw)
	return principal, err
}

func (c *Codec) decode(raw string) (Principal, jwt.Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return Principal{}, jwt.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims jwt.Claims
	if err := tok.Claims(c.keys.Public, &claims); err != nil {
		return Principal{}, jwt.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.Issuer == "" || claims.Audience == nil || claims.Expiry == nil {
		return Principal{}, jwt.Claims{}, ErrMissingClaims
	}
	if claims.Issuer != c.issuer {
		return Principal{}, jwt.Claims{}, fmt.Errorf("%w: got %q", ErrWrongIssuer, claims.Issuer)
	}
	if !claims.Expiry.Time().After(c.now()) {
		return Principal{}, jwt.Claims{}, ErrTokenExpired
	}

	principal := Principal{
		Name:   claims.Subject,
		Scopes: scopes.NewScopeSet(claims.Audience),
	}
	return principal, claims, nil
}
