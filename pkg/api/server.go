// Package api contains the REST API for the Run for Organization service.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/runfororg/runorg/pkg/api/v1"
	"github.com/runfororg/runorg/pkg/audit"
	"github.com/runfororg/runorg/pkg/auth"
	"github.com/runfororg/runorg/pkg/config"
	"github.com/runfororg/runorg/pkg/logger"
)

// Not sure if these values need to be configurable.
const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Deps carries the wired components the routers need.
type Deps struct {
	Config        *config.Config
	Orchestrator  *auth.LoginOrchestrator
	Authenticator *auth.RequestAuthenticator
	Resolver      *auth.DiscoveryResolver
	DB            *sql.DB
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// Router assembles the full route tree.
func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
		audit.SourceMiddleware,
	)

	r.Mount("/health", v1.HealthcheckRouter(deps.DB))
	r.Mount("/api/config", v1.ConfigRouter(deps.Config, deps.Resolver))
	r.Mount("/api/auth", v1.AuthRouter(deps.Orchestrator))

	// Everything below requires a valid session credential.
	r.Group(func(protected chi.Router) {
		protected.Use(deps.Authenticator.Middleware)
		protected.Mount("/api/me", v1.MeRouter())
	})

	return r
}

// Serve starts the server on the given address and serves the API until ctx
// is cancelled, then shuts down gracefully. It is assumed that the caller
// sets up appropriate signal handling.
func Serve(ctx context.Context, address string, deps Deps) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           Router(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	logger.Infof("starting HTTP server on %s", address)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Panicf("server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Infof("HTTP server stopped")
	return nil
}
