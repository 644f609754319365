package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/runfororg/runorg/pkg/config"
	"github.com/runfororg/runorg/pkg/logger"
	"github.com/runfororg/runorg/pkg/users"
)

// Auditor receives audit events from the auth boundary. The full event
// model lives in pkg/audit; this narrow interface is all the auth core
// needs, and lets tests record events.
type Auditor interface {
	UserCreated(ctx context.Context, email string, userID int64, via string)
	LoginSucceeded(ctx context.Context, email string)
	LoginFailed(ctx context.Context, reason string)
}

// LoginOrchestrator drives the authorization-code login flow: code
// exchange at the identity provider, identity-token verification, local
// user provisioning and session issuance.
type LoginOrchestrator struct {
	oidc      config.OIDC
	resolver  *DiscoveryResolver
	verifier  *IDTokenVerifier
	sessions  *SessionCodec
	directory users.Directory
	auditor   Auditor
	client    *http.Client
}

// NewLoginOrchestrator wires the login flow together. client is used for
// the token-endpoint exchange and must carry a bounded timeout.
func NewLoginOrchestrator(
	oidc config.OIDC,
	resolver *DiscoveryResolver,
	verifier *IDTokenVerifier,
	sessions *SessionCodec,
	directory users.Directory,
	auditor Auditor,
	client *http.Client,
) *LoginOrchestrator {
	return &LoginOrchestrator{
		oidc:      oidc,
		resolver:  resolver,
		verifier:  verifier,
		sessions:  sessions,
		directory: directory,
		auditor:   auditor,
		client:    client,
	}
}

// CompleteLogin exchanges the authorization code for an identity token,
// verifies it, resolves or creates the local user for the verified email,
// and issues a session credential bound to that user.
//
// The exchange is never retried: an authorization code is single-use, so a
// failed exchange surfaces immediately rather than being silently repeated.
func (o *LoginOrchestrator) CompleteLogin(ctx context.Context, code string) (string, *users.User, error) {
	if !o.oidc.Configured() {
		return "", nil, ErrNotConfigured
	}

	idToken, err := o.exchangeCode(ctx, code)
	if err != nil {
		o.auditor.LoginFailed(ctx, "code_exchange")
		return "", nil, err
	}

	claims, err := o.verifier.Verify(ctx, idToken)
	if err != nil {
		o.auditor.LoginFailed(ctx, "token_verification")
		return "", nil, err
	}

	user, err := provisionUser(ctx, o.directory, o.auditor, claims.Email)
	if err != nil {
		return "", nil, err
	}

	credential, err := o.sessions.Issue(user.Email)
	if err != nil {
		return "", nil, err
	}

	o.auditor.LoginSucceeded(ctx, user.Email)
	return credential, user, nil
}

// exchangeCode redeems the authorization code at the provider's token
// endpoint and returns the raw identity token from the response.
func (o *LoginOrchestrator) exchangeCode(ctx context.Context, code string) (string, error) {
	doc, err := o.resolver.Resolve(ctx, o.oidc.Issuer)
	if err != nil {
		return "", err
	}
	if doc.TokenEndpoint == "" {
		return "", fmt.Errorf("%w: discovery document missing token_endpoint", ErrUpstreamMalformed)
	}

	conf := &oauth2.Config{
		ClientID:     o.oidc.ClientID,
		ClientSecret: o.oidc.ClientSecret,
		RedirectURL:  o.oidc.CallbackURL,
		Endpoint: oauth2.Endpoint{
			TokenURL:  doc.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	// Route the exchange through our own client so its timeout and URL
	// validation apply.
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, o.client)
	token, err := conf.Exchange(exchangeCtx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			logger.Warnw("code exchange rejected by identity provider",
				"status", retrieveErr.Response.StatusCode,
				"error_code", retrieveErr.ErrorCode)
			return "", fmt.Errorf("%w: %v", ErrUpstreamRejected, retrieveErr.ErrorCode)
		}
		logger.Warnw("code exchange failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", fmt.Errorf("%w: no id_token in token response", ErrUpstreamMalformed)
	}
	return idToken, nil
}

// provisionUser looks up the directory by verified email and creates the
// user on first sight, emitting the corresponding audit event. A race
// between two first logins for the same email resolves through the
// directory's unique constraint; the duplicate audit event is tolerated.
func provisionUser(ctx context.Context, directory users.Directory, auditor Auditor, email string) (*users.User, error) {
	user, err := directory.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	user, err = directory.Create(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user creation failed: %w", err)
	}
	auditor.UserCreated(ctx, user.Email, user.ID, "login")
	return user, nil
}
