// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v1 "github.com/stacklok/wolfauth/pkg/api/v1"
	"github.com/stacklok/wolfauth/pkg/engine"
	"github.com/stacklok/wolfauth/pkg/logger"
	"github.com/stacklok/wolfauth/pkg/storage/sqlite"
	"github.com/stacklok/wolfauth/pkg/tokens"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wolfauth API server",
	Long: `Start the wolfauth API server. The server issues access tokens, manages
clients, scopes and access grants, and publishes its verification key set
at /.well-known/jwks.json.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 35 * time.Second // must exceed the middleware request timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("db", "wolfauth.db", "Path to the SQLite database")
	serveCmd.Flags().String("issuer", "wolfauth", "Issuer name stamped into tokens")
	serveCmd.Flags().String("signing-key", "", "Path to the RSA private key PEM used to sign tokens")
	serveCmd.Flags().String("signing-key-password", "", "Password for an encrypted signing key PEM")
	serveCmd.Flags().String("public-key", "", "Optional path to the public key PEM; must match the signing key")
	serveCmd.Flags().Duration("token-lifetime", tokens.DefaultLifetime, "Access token validity window")

	for _, flag := range []string{
		"address", "db", "issuer", "signing-key", "signing-key-password", "public-key", "token-lifetime",
	} {
		if err := viper.BindPFlag(flag, serveCmd.Flags().Lookup(flag)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", flag, err)
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	address := viper.GetString("address")
	dbPath := viper.GetString("db")
	issuer := viper.GetString("issuer")
	signingKeyPath := viper.GetString("signing-key")
	lifetime := viper.GetDuration("token-lifetime")

	if signingKeyPath == "" {
		return fmt.Errorf("signing-key flag is required")
	}

	keys, err := tokens.LoadKeyPair(signingKeyPath, viper.GetString("signing-key-password"))
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	if publicKeyPath := viper.GetString("public-key"); publicKeyPath != "" {
		public, err := tokens.LoadVerifyingKey(publicKeyPath)
		if err != nil {
			return fmt.Errorf("failed to load public key: %w", err)
		}
		if !keys.Public.Equal(public) {
			return fmt.Errorf("public key %s does not match the signing key", publicKeyPath)
		}
	}
	logger.Infof("Loaded signing key %s (kid %s)", signingKeyPath, keys.KeyID)

	codec, err := tokens.NewCodec(keys, issuer, tokens.WithLifetime(lifetime))
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close store: %v", err)
		}
	}()
	logger.Infof("Opened credential store at %s", dbPath)

	router := v1.NewServer(engine.New(store, codec))

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
