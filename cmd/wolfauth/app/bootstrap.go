// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/wolfauth/pkg/engine"
	"github.com/stacklok/wolfauth/pkg/logger"
	"github.com/stacklok/wolfauth/pkg/storage/sqlite"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed the store with the initial administrator and well-known scopes",
	Long: `Create the seed administrator client and the basic, admin and CHAD scopes
owned by it. The command is idempotent; records that already exist are left
untouched. The one-time secret is printed only when the client is created.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().String("db", "wolfauth.db", "Path to the SQLite database")
	bootstrapCmd.Flags().String("client", engine.DefaultBootstrapClient, "Name of the seed client")

	if err := viper.BindPFlag("bootstrap-db", bootstrapCmd.Flags().Lookup("db")); err != nil {
		logger.Fatalf("Failed to bind db flag: %v", err)
	}
	if err := viper.BindPFlag("bootstrap-client", bootstrapCmd.Flags().Lookup("client")); err != nil {
		logger.Fatalf("Failed to bind client flag: %v", err)
	}
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	store, err := sqlite.Open(ctx, viper.GetString("bootstrap-db"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close store: %v", err)
		}
	}()

	// Seeding never mints tokens, so no codec is needed.
	eng := engine.New(store, nil)

	clientName := viper.GetString("bootstrap-client")
	secret, err := eng.Bootstrap(ctx, clientName)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if secret == "" {
		cmd.Printf("Client %q already exists; nothing to do.\n", clientName)
		return nil
	}

	cmd.Printf("Created client %q.\nOne-time secret (store it now, it will not be shown again):\n%s\n", clientName, secret)
	return nil
}
