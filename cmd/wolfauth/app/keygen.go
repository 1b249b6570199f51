// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/wolfauth/pkg/logger"
	"github.com/stacklok/wolfauth/pkg/tokens"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a fresh RSA signing key pair as PEM files",
	Long: `Generate an RSA-2048 key pair for token signing. Key rotation is a file
swap plus restart: generate a new pair, point serve at it, and restart.`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().String("key", "signing.pem", "Output path for the private key PEM")
	keygenCmd.Flags().String("pub", "signing.pub.pem", "Output path for the public key PEM")

	if err := viper.BindPFlag("keygen-key", keygenCmd.Flags().Lookup("key")); err != nil {
		logger.Fatalf("Failed to bind key flag: %v", err)
	}
	if err := viper.BindPFlag("keygen-pub", keygenCmd.Flags().Lookup("pub")); err != nil {
		logger.Fatalf("Failed to bind pub flag: %v", err)
	}
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	keys, err := tokens.GenerateKeyPair()
	if err != nil {
		return err
	}

	privPEM, err := keys.EncodePrivateKeyPEM()
	if err != nil {
		return err
	}
	pubPEM, err := keys.EncodePublicKeyPEM()
	if err != nil {
		return err
	}

	keyPath := viper.GetString("keygen-key")
	pubPath := viper.GetString("keygen-pub")

	if err := os.WriteFile(keyPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil { // #nosec G306 - public key is public
		return fmt.Errorf("writing public key: %w", err)
	}

	cmd.Printf("Wrote %s and %s (kid %s)\n", keyPath, pubPath, keys.KeyID)
	return nil
}
