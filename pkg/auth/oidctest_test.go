package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/require"

	"github.com/runfororg/runorg/pkg/networking"
)

// fakeIDP is an in-process identity provider serving a discovery document
// and a JWKS endpoint, counting how often each is fetched.
type fakeIDP struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	discoveryHits int
	jwksHits      int
	keys          map[string]*rsa.PrivateKey

	// Overridable handlers for failure-mode tests.
	discoveryHandler http.HandlerFunc
	jwksHandler      http.HandlerFunc
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	idp := &fakeIDP{t: t, keys: make(map[string]*rsa.PrivateKey)}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		idp.mu.Lock()
		idp.discoveryHits++
		handler := idp.discoveryHandler
		idp.mu.Unlock()
		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 idp.issuer(),
			"authorization_endpoint": idp.issuer() + "/authorize",
			"token_endpoint":         idp.issuer() + "/token",
			"jwks_uri":               idp.issuer() + "/jwks",
		}))
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		idp.mu.Lock()
		idp.jwksHits++
		handler := idp.jwksHandler
		idp.mu.Unlock()
		if handler != nil {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write(idp.jwksBody())
		require.NoError(t, err)
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (f *fakeIDP) issuer() string {
	return f.server.URL
}

// addKey generates and publishes a signing key under the given key id.
func (f *fakeIDP) addKey(kid string) *rsa.PrivateKey {
	f.t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(f.t, err)

	f.mu.Lock()
	f.keys[kid] = priv
	f.mu.Unlock()
	return priv
}

func (f *fakeIDP) removeKey(kid string) {
	f.mu.Lock()
	delete(f.keys, kid)
	f.mu.Unlock()
}

func (f *fakeIDP) jwksBody() []byte {
	f.t.Helper()

	set := jwk.NewSet()
	f.mu.Lock()
	for kid, priv := range f.keys {
		key, err := jwk.Import(priv.Public())
		require.NoError(f.t, err)
		require.NoError(f.t, key.Set(jwk.KeyIDKey, kid))
		require.NoError(f.t, set.AddKey(key))
	}
	f.mu.Unlock()

	body, err := json.Marshal(set)
	require.NoError(f.t, err)
	return body
}

func (f *fakeIDP) counts() (discovery, jwks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoveryHits, f.jwksHits
}

// signIDToken signs an identity token with the key registered under kid.
// The key does not have to be published in the JWKS (rotation tests).
func (f *fakeIDP) signIDToken(kid string, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	f.t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(f.t, err)
	return signed
}

// idClaims returns a standard set of valid identity-token claims.
func (f *fakeIDP) idClaims(audience, email string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   f.issuer(),
		"sub":   "user-123",
		"aud":   audience,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

// testClient returns an HTTP client that accepts the fake provider's
// plain-HTTP localhost endpoints.
func testClient(t *testing.T) *http.Client {
	t.Helper()
	client, err := networking.NewHttpClientBuilder().Build()
	require.NoError(t, err)
	return client
}
