// Package auth provides authentication for the runorg API: OIDC login
// against an external identity provider and the service's own short-lived
// session credential for all subsequent requests.
package auth

import "errors"

// Common errors. Handlers map these onto HTTP statuses; the sentinel is the
// only part of a failure that ever reaches a client, full detail is logged
// server-side.
var (
	// ErrNotConfigured means the OIDC settings required for login are absent.
	ErrNotConfigured = errors.New("oidc is not configured")

	// ErrUpstreamUnavailable means the identity provider could not be reached
	// (timeout, connection failure).
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")

	// ErrUpstreamMalformed means the identity provider returned a response
	// that is missing required fields or is otherwise unparseable.
	ErrUpstreamMalformed = errors.New("identity provider returned malformed response")

	// ErrUpstreamRejected means the identity provider refused the
	// authorization-code exchange.
	ErrUpstreamRejected = errors.New("identity provider rejected code exchange")

	// ErrKeyNotFound means the signing key named by a token's key id is not
	// in the provider's published key set, even after a refresh.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrTokenInvalid means a token failed verification: bad signature,
	// wrong issuer or audience, expired, unsupported algorithm, missing
	// required claims. Verification never returns partially-trusted claims.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrUnauthenticated means the request carried no usable session
	// credential: missing or garbled bearer header, or a credential that
	// failed verification.
	ErrUnauthenticated = errors.New("unauthenticated")
)
