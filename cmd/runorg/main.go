// Package main is the entry point for the Run for Organization API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/runfororg/runorg/pkg/api"
	"github.com/runfororg/runorg/pkg/audit"
	"github.com/runfororg/runorg/pkg/auth"
	"github.com/runfororg/runorg/pkg/config"
	"github.com/runfororg/runorg/pkg/logger"
	"github.com/runfororg/runorg/pkg/networking"
	"github.com/runfororg/runorg/pkg/users"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	directory, err := users.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("failed to open user database: %v", err)
	}
	defer func() {
		if err := directory.Close(); err != nil {
			logger.Warnf("failed to close user database: %v", err)
		}
	}()

	client, err := networking.NewHttpClientBuilder().Build()
	if err != nil {
		logger.Fatalf("failed to build HTTP client: %v", err)
	}

	auditor := audit.NewAuditor(os.Stdout)

	resolver := auth.NewDiscoveryResolver(client, auth.DefaultDiscoveryTTL)
	keys := auth.NewKeySetCache(resolver, client, auth.DefaultKeySetTTL)
	verifier := auth.NewIDTokenVerifier(keys, cfg.OIDC.Issuer, cfg.OIDC.Audience, cfg.OIDC.Algorithms)
	sessions := auth.NewSessionCodec(cfg.SessionSecret, cfg.SessionTTL)
	orchestrator := auth.NewLoginOrchestrator(cfg.OIDC, resolver, verifier, sessions, directory, auditor, client)
	authenticator := auth.NewRequestAuthenticator(sessions, directory, auditor)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := api.Deps{
		Config:        cfg,
		Orchestrator:  orchestrator,
		Authenticator: authenticator,
		Resolver:      resolver,
		DB:            directory.DB(),
	}

	if err := api.Serve(ctx, cfg.ServerAddress, deps); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
