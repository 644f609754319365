package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/runfororg/runorg/pkg/networking"
)

// DefaultKeySetTTL is how long a fetched key set is served from cache before
// the next lookup triggers a refresh.
const DefaultKeySetTTL = time.Hour

type cachedKeySet struct {
	set       jwk.Set
	fetchedAt time.Time
}

// KeySetCache fetches and caches the identity provider's published signing
// keys, indexed by key id.
//
// A lookup that misses the cached set performs exactly one refresh fetch
// before failing: a freshly rotated key that is not yet cached costs one
// fetch, an unknown key id costs one fetch and then fails with
// ErrKeyNotFound. Like the discovery cache, concurrent refreshes are
// tolerated as redundant work and no lock is held across the network call.
type KeySetCache struct {
	resolver *DiscoveryResolver
	client   networking.HTTPClient
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedKeySet
}

// NewKeySetCache creates a key-set cache resolving jwks_uri through the
// given DiscoveryResolver. A zero ttl means DefaultKeySetTTL.
func NewKeySetCache(resolver *DiscoveryResolver, client networking.HTTPClient, ttl time.Duration) *KeySetCache {
	if ttl <= 0 {
		ttl = DefaultKeySetTTL
	}
	return &KeySetCache{
		resolver: resolver,
		client:   client,
		ttl:      ttl,
		now:      time.Now,
		cache:    make(map[string]cachedKeySet),
	}
}

// GetKey returns the raw public key for keyID in issuer's published key set.
// On a cache miss for the issuer, or when keyID is absent from a current
// cached set, it refreshes the set once before failing.
func (c *KeySetCache) GetKey(ctx context.Context, issuer, keyID string) (any, error) {
	if set := c.cached(issuer); set != nil {
		if key, found := set.LookupKeyID(keyID); found {
			return exportKey(key)
		}
	}

	// One refresh, whether the set was expired, absent, or simply did not
	// contain the key (rotation).
	set, err := c.refresh(ctx, issuer)
	if err != nil {
		return nil, err
	}

	key, found := set.LookupKeyID(keyID)
	if !found {
		return nil, fmt.Errorf("%w: key id %q not in key set for %s", ErrKeyNotFound, keyID, issuer)
	}
	return exportKey(key)
}

func (c *KeySetCache) cached(issuer string) jwk.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[issuer]
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil
	}
	return entry.set
}

func (c *KeySetCache) refresh(ctx context.Context, issuer string) (jwk.Set, error) {
	doc, err := c.resolver.Resolve(ctx, issuer)
	if err != nil {
		return nil, err
	}

	set, err := c.fetchKeySet(ctx, doc.JWKSURI)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[issuer] = cachedKeySet{set: set, fetchedAt: c.now()}
	c.mu.Unlock()

	return set, nil
}

func (c *KeySetCache) fetchKeySet(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", networking.ContentTypeJSON)
	req.Header.Set("User-Agent", networking.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: JWKS endpoint returned status %d", ErrUpstreamUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: JWKS endpoint returned status %d", ErrUpstreamMalformed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse JWKS: %v", ErrUpstreamMalformed, err)
	}
	return set, nil
}

// exportKey converts a JWK into the raw key type the JWT library verifies
// with (e.g. *rsa.PublicKey).
func exportKey(key jwk.Key) (any, error) {
	var rawKey any
	if err := jwk.Export(key, &rawKey); err != nil {
		return nil, fmt.Errorf("%w: failed to export raw key: %v", ErrUpstreamMalformed, err)
	}
	return rawKey, nil
}
