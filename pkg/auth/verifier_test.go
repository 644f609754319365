package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAudience = "runorg-client"

func newTestVerifier(t *testing.T, idp *fakeIDP) *IDTokenVerifier {
	t.Helper()
	client := testClient(t)
	resolver := NewDiscoveryResolver(client, time.Hour)
	keys := NewKeySetCache(resolver, client, time.Hour)
	return NewIDTokenVerifier(keys, idp.issuer(), testAudience, []string{"RS256"})
}

func TestVerifyValidToken(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	priv := idp.addKey("key-1")
	verifier := newTestVerifier(t, idp)

	raw := idp.signIDToken("key-1", priv, idp.idClaims(testAudience, "Runner@Example.COM"))

	claims, err := verifier.Verify(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "runner@example.com", claims.Email)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, idp.issuer(), claims.Issuer)
	assert.Contains(t, claims.Audience, testAudience)
}

func TestVerifyRotatedKey(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	oldKey := idp.addKey("key-old")
	verifier := newTestVerifier(t, idp)
	ctx := context.Background()

	raw := idp.signIDToken("key-old", oldKey, idp.idClaims(testAudience, "a@example.com"))
	_, err := verifier.Verify(ctx, raw)
	require.NoError(t, err)

	// Rotation: a token signed with a key published after the set was
	// cached verifies after a single refresh.
	newKey := idp.addKey("key-new")
	raw = idp.signIDToken("key-new", newKey, idp.idClaims(testAudience, "b@example.com"))

	claims, err := verifier.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", claims.Email)

	_, jwksHits := idp.counts()
	assert.Equal(t, 2, jwksHits)
}

func TestVerifyUnknownKeyID(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	idp.addKey("key-1")
	verifier := newTestVerifier(t, idp)

	// Signed with a key the provider never published.
	rogueKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	raw := idp.signIDToken("key-rogue", rogueKey, idp.idClaims(testAudience, "a@example.com"))

	_, err = verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Exactly one refresh was attempted for the unknown key id.
	_, jwksHits := idp.counts()
	assert.Equal(t, 1, jwksHits)
}

func TestVerifyRejectsDisallowedAlgorithmBeforeKeyFetch(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	idp.addKey("key-1")
	verifier := newTestVerifier(t, idp)

	// An HS256 token claiming to be signed with the shared "key". If the
	// algorithm were not pinned, the verifier could be tricked into using an
	// RSA public key as an HMAC secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, idp.idClaims(testAudience, "a@example.com"))
	token.Header["kid"] = "key-1"
	raw, err := token.SignedString([]byte("attacker-controlled"))
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// The allow-list check fired before any network traffic.
	discoveryHits, jwksHits := idp.counts()
	assert.Zero(t, discoveryHits)
	assert.Zero(t, jwksHits)
}

func TestVerifyClaimFailures(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	priv := idp.addKey("key-1")
	verifier := newTestVerifier(t, idp)

	now := time.Now()
	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{
			name: "expired",
			claims: jwt.MapClaims{
				"iss": idp.issuer(), "sub": "u", "aud": testAudience, "email": "a@example.com",
				"iat": now.Add(-2 * time.Hour).Unix(), "exp": now.Add(-time.Hour).Unix(),
			},
		},
		{
			name: "missing expiry",
			claims: jwt.MapClaims{
				"iss": idp.issuer(), "sub": "u", "aud": testAudience, "email": "a@example.com",
				"iat": now.Unix(),
			},
		},
		{
			name: "wrong issuer",
			claims: jwt.MapClaims{
				"iss": "https://other.example.com", "sub": "u", "aud": testAudience, "email": "a@example.com",
				"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
			},
		},
		{
			name: "wrong audience",
			claims: jwt.MapClaims{
				"iss": idp.issuer(), "sub": "u", "aud": "someone-else", "email": "a@example.com",
				"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
			},
		},
		{
			name: "missing email",
			claims: jwt.MapClaims{
				"iss": idp.issuer(), "sub": "u", "aud": testAudience,
				"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw := idp.signIDToken("key-1", priv, tt.claims)
			_, err := verifier.Verify(context.Background(), raw)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	priv := idp.addKey("key-1")
	verifier := newTestVerifier(t, idp)

	raw := idp.signIDToken("key-1", priv, idp.idClaims(testAudience, "a@example.com"))

	// Flip a byte in the signature.
	tampered := []byte(raw)
	tampered[len(tampered)-3] ^= 0x01

	_, err := verifier.Verify(context.Background(), string(tampered))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbageToken(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	verifier := newTestVerifier(t, idp)

	_, err := verifier.Verify(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyClockSkewTolerated(t *testing.T) {
	t.Parallel()

	idp := newFakeIDP(t)
	priv := idp.addKey("key-1")
	verifier := newTestVerifier(t, idp)

	// Expired thirty seconds ago, inside the one-minute leeway.
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": idp.issuer(), "sub": "u", "aud": testAudience, "email": "a@example.com",
		"iat": now.Add(-time.Hour).Unix(), "exp": now.Add(-30 * time.Second).Unix(),
	}
	raw := idp.signIDToken("key-1", priv, claims)

	_, err := verifier.Verify(context.Background(), raw)
	assert.NoError(t, err)
}
