// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/wolfauth/pkg/logger"
	"github.com/stacklok/wolfauth/pkg/scopes"
	"github.com/stacklok/wolfauth/pkg/secrets"
	"github.com/stacklok/wolfauth/pkg/storage"
)

// DefaultBootstrapClient is the seed administrator created by Bootstrap.
const DefaultBootstrapClient = "wolfey"

// Bootstrap seeds the store with the initial administrator client and the
// well-known scopes, all owned by it. The operation is idempotent: records
// that already exist are left untouched, and the one-time secret is
// returned only when the client was created by this call.
func (e *Engine) Bootstrap(ctx context.Context, clientName string) (string, error) {
	if clientName == "" {
		clientName = DefaultBootstrapClient
	}

	var oneTimeSecret string
	plaintext, hash, err := secrets.Issue()
	if err != nil {
		return "", err
	}

	err = e.store.CreateClient(ctx, clientName, hash)
	switch {
	case err == nil:
		oneTimeSecret = plaintext
		logger.Infow("bootstrap created client", "client", clientName)
	case errors.Is(err, storage.ErrAlreadyExists):
		logger.Debugw("bootstrap client already present", "client", clientName)
	default:
		return "", fmt.Errorf("creating bootstrap client: %w", err)
	}

	for _, scope := range []string{scopes.Basic, scopes.Admin, scopes.Chad} {
		err := e.store.CreateScopeWithGrant(ctx, scope, clientName)
		switch {
		case err == nil:
			logger.Infow("bootstrap created scope", "scope", scope, "owner", clientName)
		case errors.Is(err, storage.ErrAlreadyExists):
			logger.Debugw("bootstrap scope already present", "scope", scope)
		default:
			return "", fmt.Errorf("creating bootstrap scope %q: %w", scope, err)
		}
	}

	return oneTimeSecret, nil
}
