package engineclient

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("unused-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestCachingFabricTokenProviderReusesFreshToken(t *testing.T) {
	calls := 0
	underlying := TokenProvider(func(ctx context.Context) (TokenProviderResult, error) {
		calls++
		return TokenProviderResult{Scheme: "Bearer", Token: signedToken(t, time.Now().Add(time.Hour))}, nil
	})

	cache := NewCachingFabricTokenProvider(underlying)
	_, err := cache.Provide(context.Background())
	require.NoError(t, err)
	_, err = cache.Provide(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "a still-fresh token must not trigger a second fetch")
}

func TestCachingFabricTokenProviderRefetchesNearExpiry(t *testing.T) {
	calls := 0
	underlying := TokenProvider(func(ctx context.Context) (TokenProviderResult, error) {
		calls++
		return TokenProviderResult{Scheme: "Bearer", Token: signedToken(t, time.Now().Add(time.Second))}, nil
	})

	cache := NewCachingFabricTokenProvider(underlying)
	_, err := cache.Provide(context.Background())
	require.NoError(t, err)
	_, err = cache.Provide(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "a token within the refresh skew of expiry must be refetched")
}
