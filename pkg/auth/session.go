package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the lifetime of an issued session credential.
const DefaultSessionTTL = 60 * time.Minute

// sessionSigningMethod is the one and only algorithm for session
// credentials. There is no negotiation: a token declaring anything else is
// rejected outright, which removes the algorithm-confusion attack surface
// for this internal credential entirely.
var sessionSigningMethod = jwt.SigningMethodHS256

// SessionCodec issues and verifies the service's own session credential: a
// short-lived token binding a verified email, signed with the service
// secret. Issue and Verify are pure and safe for concurrent use.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionCodec creates a codec signing with secret. A zero ttl means
// DefaultSessionTTL.
func NewSessionCodec(secret string, ttl time.Duration) *SessionCodec {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed session credential for the given email, valid from
// now until now + ttl. The subject is stored in canonical lower-cased form.
func (c *SessionCodec) Issue(subjectEmail string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   strings.ToLower(strings.TrimSpace(subjectEmail)),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(sessionSigningMethod, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session credential: %w", err)
	}
	return signed, nil
}

// Verify checks the credential's signature and expiry and returns the
// subject email in canonical lower-cased form. It never decodes without
// verifying.
func (c *SessionCodec) Verify(tokenString string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{sessionSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		// Reject non-canonical base64 so a credential has exactly one
		// byte representation.
		jwt.WithStrictDecoding(),
	)

	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return "", ErrTokenInvalid
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrTokenInvalid)
	}

	return strings.ToLower(claims.Subject), nil
}
