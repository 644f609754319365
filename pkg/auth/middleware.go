package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/runfororg/runorg/pkg/logger"
	"github.com/runfororg/runorg/pkg/users"
)

// RequestAuthenticator turns a bearer session credential from an incoming
// request into a user from the directory. It only understands this
// service's own session credentials, never raw identity-provider tokens.
type RequestAuthenticator struct {
	sessions  *SessionCodec
	directory users.Directory
	auditor   Auditor
}

// NewRequestAuthenticator creates an authenticator verifying credentials
// with sessions and resolving users through directory.
func NewRequestAuthenticator(sessions *SessionCodec, directory users.Directory, auditor Auditor) *RequestAuthenticator {
	return &RequestAuthenticator{
		sessions:  sessions,
		directory: directory,
		auditor:   auditor,
	}
}

// Authenticate verifies the bearer credential and returns the user it is
// bound to. A valid credential whose user is missing from the directory
// re-creates the user rather than locking out the holder; lookup failures
// beyond that surface as-is.
func (a *RequestAuthenticator) Authenticate(ctx context.Context, credential string) (*users.User, error) {
	email, err := a.sessions.Verify(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := provisionUser(ctx, a.directory, a.auditor, email)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Middleware returns an HTTP middleware that requires a valid bearer
// session credential and stamps the resolved user into the request context.
func (a *RequestAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		credential := strings.TrimPrefix(authHeader, "Bearer ")

		user, err := a.Authenticate(r.Context(), credential)
		if err != nil {
			// Only credential failures are the client's fault; a directory
			// failure behind a valid credential is ours.
			if !errors.Is(err, ErrUnauthenticated) {
				logger.Errorw("user resolution failed", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			logger.Debugw("request authentication failed", "error", err)
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Invalid or expired credentials", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
