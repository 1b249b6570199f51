// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the wolfauth command-line application.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/wolfauth/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "wolfauth",
	DisableAutoGenTag: true,
	Short:             "wolfauth is a centralized authentication and authorization service",
	Long: `wolfauth issues RS256-signed access tokens to service clients and manages
the clients, scopes and access grants behind them. Resource servers verify
tokens offline against the published JWKS.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(viper.GetBool("debug"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the wolfauth CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	// Every flag can also be set via WOLFAUTH_* env vars.
	viper.SetEnvPrefix("wolfauth")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(keygenCmd)

	return rootCmd
}
