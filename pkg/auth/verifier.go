package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultClockSkew is the allowance applied to exp/nbf checks to tolerate
// modest clock drift between this service and the identity provider.
const DefaultClockSkew = time.Minute

// IdentityClaims is the verified identity asserted by an identity token.
// It is only ever produced by a successful Verify call, never from
// unverified input.
type IdentityClaims struct {
	// Subject is the provider's stable identifier for the user.
	Subject string
	// Email is the verified email, canonicalized to lower case.
	Email string
	// Issuer is the identity provider that signed the token.
	Issuer string
	// Audience is the audience list the token was issued for.
	Audience []string
	// IssuedAt and Expiry bound the token's validity window.
	IssuedAt time.Time
	Expiry   time.Time
}

// idTokenClaims is the wire shape of an identity token's payload.
type idTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IDTokenVerifier cryptographically validates identity tokens issued by the
// configured identity provider.
//
// Any failure, at any step, yields ErrTokenInvalid: the verifier fails
// closed and never returns partially-trusted claims.
type IDTokenVerifier struct {
	keys       *KeySetCache
	issuer     string
	audience   string
	algorithms []string
	clockSkew  time.Duration
	now        func() time.Time
}

// NewIDTokenVerifier creates a verifier for tokens from issuer, expected to
// carry audience, signed with one of the allowed algorithms.
func NewIDTokenVerifier(keys *KeySetCache, issuer, audience string, algorithms []string) *IDTokenVerifier {
	return &IDTokenVerifier{
		keys:       keys,
		issuer:     issuer,
		audience:   audience,
		algorithms: algorithms,
		clockSkew:  DefaultClockSkew,
		now:        time.Now,
	}
}

// Verify validates the raw identity token and returns its claims.
//
// The declared algorithm is checked against the allow-list before any key is
// resolved or any signature is examined; this closes the algorithm-confusion
// class of attack (e.g. a token declaring HS256 against an RSA key set).
func (v *IDTokenVerifier) Verify(ctx context.Context, rawToken string) (*IdentityClaims, error) {
	parser := jwt.NewParser(
		// Checked before the keyfunc runs: an unlisted algorithm is
		// rejected without touching the key cache or the signature.
		jwt.WithValidMethods(v.algorithms),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithStrictDecoding(),
	)

	claims := &idTokenClaims{}
	token, err := parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		return v.keys.GetKey(ctx, v.issuer, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if err := v.validateClaims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	var issuedAt, expiry time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	return &IdentityClaims{
		Subject:  claims.Subject,
		Email:    strings.ToLower(strings.TrimSpace(claims.Email)),
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
		IssuedAt: issuedAt,
		Expiry:   expiry,
	}, nil
}

func (v *IDTokenVerifier) validateClaims(claims *idTokenClaims) error {
	if claims.Issuer != v.issuer {
		return fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if !slices.Contains(claims.Audience, v.audience) {
		return fmt.Errorf("audience does not include %q", v.audience)
	}
	if strings.TrimSpace(claims.Email) == "" {
		return fmt.Errorf("missing email claim")
	}
	return nil
}
