package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-session-secret"

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewSessionCodec(testSecret, time.Hour)

	credential, err := codec.Issue("Runner@Example.COM")
	require.NoError(t, err)

	email, err := codec.Verify(credential)
	require.NoError(t, err)
	assert.Equal(t, "runner@example.com", email)
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	codec := NewSessionCodec(testSecret, 30*time.Minute)
	codec.now = clock.Now

	credential, err := codec.Issue("a@example.com")
	require.NoError(t, err)

	// Still valid just inside the TTL.
	clock.Advance(29 * time.Minute)
	_, err = codec.Verify(credential)
	require.NoError(t, err)

	// Rejected past the TTL.
	clock.Advance(2 * time.Minute)
	_, err = codec.Verify(credential)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionTamperedSignature(t *testing.T) {
	t.Parallel()

	codec := NewSessionCodec(testSecret, time.Hour)

	credential, err := codec.Issue("a@example.com")
	require.NoError(t, err)

	// Any single-bit change anywhere in the signature segment must fail,
	// including the final character: strict decoding rejects the
	// non-canonical encodings lenient base64 would silently accept.
	sigStart := strings.LastIndexByte(credential, '.') + 1
	for i := sigStart; i < len(credential); i++ {
		tampered := []byte(credential)
		tampered[i] ^= 0x01

		_, err := codec.Verify(string(tampered))
		assert.ErrorIs(t, err, ErrTokenInvalid, "flipped byte at offset %d", i)
	}
}

func TestSessionWrongSecret(t *testing.T) {
	t.Parallel()

	credential, err := NewSessionCodec("secret-one", time.Hour).Issue("a@example.com")
	require.NoError(t, err)

	_, err = NewSessionCodec("secret-two", time.Hour).Verify(credential)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionRejectsForeignAlgorithm(t *testing.T) {
	t.Parallel()

	codec := NewSessionCodec(testSecret, time.Hour)

	// A token signed with a different HMAC variant is rejected even though
	// the secret matches.
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "a@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionRejectsMissingSubject(t *testing.T) {
	t.Parallel()

	codec := NewSessionCodec(testSecret, time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionRejectsMissingExpiry(t *testing.T) {
	t.Parallel()

	codec := NewSessionCodec(testSecret, time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "a@example.com",
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionGarbage(t *testing.T) {
	t.Parallel()

	codec := NewSessionCodec(testSecret, time.Hour)

	for _, credential := range []string{"", "garbage", "a.b.c"} {
		_, err := codec.Verify(credential)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestSessionDefaultTTL(t *testing.T) {
	t.Parallel()

	codec := NewSessionCodec(testSecret, 0)
	assert.Equal(t, DefaultSessionTTL, codec.ttl)
}
