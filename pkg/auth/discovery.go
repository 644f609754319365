package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/runfororg/runorg/pkg/networking"
)

// WellKnownOIDCPath is the standard OIDC discovery path under an issuer.
const WellKnownOIDCPath = "/.well-known/openid-configuration"

// DefaultDiscoveryTTL is how long a fetched discovery document is served
// from cache before the next call triggers a refresh.
const DefaultDiscoveryTTL = time.Hour

// DiscoveryDocument represents the OIDC discovery document structure.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type cachedDocument struct {
	doc       *DiscoveryDocument
	fetchedAt time.Time
}

// DiscoveryResolver fetches and caches OIDC discovery documents per issuer.
//
// The cache is safe for concurrent use. Concurrent callers hitting an expired
// entry may each perform a redundant fetch; that is deliberate: writes are
// whole-document last-writer-wins replacements, so the races cost a fetch,
// never correctness, and no lock is held while awaiting the network.
type DiscoveryResolver struct {
	client networking.HTTPClient
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedDocument
}

// NewDiscoveryResolver creates a resolver with the given HTTP client and TTL.
// A zero ttl means DefaultDiscoveryTTL.
func NewDiscoveryResolver(client networking.HTTPClient, ttl time.Duration) *DiscoveryResolver {
	if ttl <= 0 {
		ttl = DefaultDiscoveryTTL
	}
	return &DiscoveryResolver{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cachedDocument),
	}
}

// Resolve returns the discovery document for issuer, from cache when fresh.
func (r *DiscoveryResolver) Resolve(ctx context.Context, issuer string) (*DiscoveryDocument, error) {
	if issuer == "" {
		return nil, fmt.Errorf("%w: empty issuer", ErrUpstreamMalformed)
	}

	if doc := r.cached(issuer); doc != nil {
		return doc, nil
	}

	doc, err := r.fetch(ctx, issuer)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[issuer] = cachedDocument{doc: doc, fetchedAt: r.now()}
	r.mu.Unlock()

	return doc, nil
}

func (r *DiscoveryResolver) cached(issuer string) *DiscoveryDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[issuer]
	if !ok || r.now().Sub(entry.fetchedAt) >= r.ttl {
		return nil
	}
	return entry.doc
}

func (r *DiscoveryResolver) fetch(ctx context.Context, issuer string) (*DiscoveryDocument, error) {
	wellKnownURL := strings.TrimSuffix(issuer, "/") + WellKnownOIDCPath

	doc, err := networking.FetchJSON[DiscoveryDocument](ctx, r.client, wellKnownURL)
	if err != nil {
		return nil, classifyFetchError(err)
	}

	// Validate that we got the required fields.
	if doc.JWKSURI == "" {
		return nil, fmt.Errorf("%w: discovery document missing jwks_uri", ErrUpstreamMalformed)
	}
	if doc.Issuer != "" && doc.Issuer != issuer {
		return nil, fmt.Errorf("%w: issuer mismatch: expected %s, got %s", ErrUpstreamMalformed, issuer, doc.Issuer)
	}

	return doc, nil
}

// classifyFetchError maps a metadata-fetch failure onto the upstream error
// taxonomy: server errors and transport failures are "unavailable", anything
// the provider actively answered with is "malformed metadata".
func classifyFetchError(err error) error {
	var httpErr *networking.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}
	if strings.Contains(err.Error(), "failed to parse JSON") ||
		strings.Contains(err.Error(), "unexpected content type") {
		return fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
