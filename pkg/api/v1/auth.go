// Package v1 contains the HTTP handlers of the Run for Organization API.
package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/runfororg/runorg/pkg/auth"
	"github.com/runfororg/runorg/pkg/logger"
	"github.com/runfororg/runorg/pkg/users"
)

// AuthRouter creates the router for the login flow.
func AuthRouter(orchestrator *auth.LoginOrchestrator) http.Handler {
	routes := &authRoutes{orchestrator: orchestrator}
	r := chi.NewRouter()
	r.Get("/callback", routes.callback)
	return r
}

type authRoutes struct {
	orchestrator *auth.LoginOrchestrator
}

// loginResponse is the body returned on successful login.
type loginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *users.User `json:"user"`
}

// callback
//
//	@Summary		OIDC login callback
//	@Description	Complete the authorization-code login flow
//	@Tags			auth
//	@Produce		json
//	@Param			code	query	string	true	"Authorization code from the identity provider"
//	@Success		200	{object}	loginResponse
//	@Failure		401	{string}	string	"Authentication failed"
//	@Failure		501	{string}	string	"Authentication is not configured"
//	@Router			/api/auth/callback [get]
func (a *authRoutes) callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	credential, user, err := a.orchestrator.CompleteLogin(r.Context(), code)
	if err != nil {
		// The client gets a generic message; the detail stays in the log.
		logger.Warnw("login failed", "error", err)
		status, message := loginFailureStatus(err)
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := loginResponse{
		AccessToken: credential,
		TokenType:   "bearer",
		User:        user,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode login response", http.StatusInternalServerError)
	}
}

// loginFailureStatus maps a login error onto an HTTP status and a message
// that reveals nothing about the failure's cause.
func loginFailureStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		return http.StatusNotImplemented, "Authentication is not configured"
	case errors.Is(err, auth.ErrUpstreamRejected),
		errors.Is(err, auth.ErrUpstreamUnavailable),
		errors.Is(err, auth.ErrUpstreamMalformed),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized, "Authentication failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
