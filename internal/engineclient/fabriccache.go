package engineclient

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// refreshSkew is how far ahead of a cached token's exp claim we refetch it,
// mirroring the skew internal/server/auth.go's own expiry check uses.
const refreshSkew = 60 * time.Second

// CachingFabricTokenProvider wraps a Fabric TokenProvider so a token is
// only refetched once it is within refreshSkew of its own exp claim,
// rather than on every request. The underlying JWT's signature is never
// re-verified here — signing is the provider's concern — only the exp
// claim is decoded to drive the cache.
type CachingFabricTokenProvider struct {
	underlying TokenProvider

	mu      sync.Mutex
	cached  TokenProviderResult
	expires time.Time
}

func NewCachingFabricTokenProvider(underlying TokenProvider) *CachingFabricTokenProvider {
	return &CachingFabricTokenProvider{underlying: underlying}
}

// Provide satisfies TokenProvider, returning the cached result when still
// fresh and refetching through underlying otherwise.
func (c *CachingFabricTokenProvider) Provide(ctx context.Context) (TokenProviderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached.Token != "" && time.Now().Before(c.expires) {
		return c.cached, nil
	}

	result, err := c.underlying(ctx)
	if err != nil {
		return TokenProviderResult{}, err
	}

	c.cached = result
	c.expires = expiryOf(result.Token)
	return result, nil
}

// expiryOf decodes the exp claim without validating the signature; a token
// this module cannot parse is treated as already expired so the next call
// refetches it rather than caching indefinitely.
func expiryOf(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.Add(-refreshSkew)
}
