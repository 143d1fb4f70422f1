package token_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/spotifeye/token"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRegistry(t *testing.T, mr *miniredis.Miniredis, now func() time.Time) *token.RedisRevocationRegistry {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return token.NewRedisRevocationRegistry(client, "spotifeye:", token.WithRedisNowFunc(now))
}

func TestRevocationRegistries(t *testing.T) {
	now := time.Now()
	backends := map[string]func(t *testing.T) token.RevocationRegistry{
		"memory": func(t *testing.T) token.RevocationRegistry {
			return token.NewInMemoryRevocationRegistry()
		},
		"redis": func(t *testing.T) token.RevocationRegistry {
			return newRedisRegistry(t, miniredis.RunT(t), func() time.Time { return now })
		},
	}

	for name, newRegistry := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("starts empty", func(t *testing.T) {
				r := newRegistry(t)
				revoked, err := r.IsRevoked(ctx, "token-a")
				require.NoError(t, err)
				require.False(t, revoked)
			})

			t.Run("revoke is idempotent", func(t *testing.T) {
				r := newRegistry(t)
				exp := now.Add(time.Hour)
				require.NoError(t, r.Revoke(ctx, "token-a", exp))
				require.NoError(t, r.Revoke(ctx, "token-a", exp))

				revoked, err := r.IsRevoked(ctx, "token-a")
				require.NoError(t, err)
				require.True(t, revoked)

				revoked, err = r.IsRevoked(ctx, "token-b")
				require.NoError(t, err)
				require.False(t, revoked)
			})

			t.Run("already expired token", func(t *testing.T) {
				r := newRegistry(t)
				require.NoError(t, r.Revoke(ctx, "token-old", now.Add(-time.Hour)))
				revoked, err := r.IsRevoked(ctx, "token-old")
				require.NoError(t, err)
				require.True(t, revoked)
			})

			t.Run("try revoke reports first caller only", func(t *testing.T) {
				r := newRegistry(t)
				first, err := r.TryRevoke(ctx, "state-1", now.Add(time.Minute))
				require.NoError(t, err)
				require.True(t, first)

				first, err = r.TryRevoke(ctx, "state-1", now.Add(time.Minute))
				require.NoError(t, err)
				require.False(t, first)
			})

			t.Run("concurrent revoke", func(t *testing.T) {
				r := newRegistry(t)
				var (
					wg      sync.WaitGroup
					mu      sync.Mutex
					winners int
				)
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						first, err := r.TryRevoke(ctx, "shared", now.Add(time.Hour))
						assert.NoError(t, err)
						if first {
							mu.Lock()
							winners++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()
				require.Equal(t, 1, winners)

				revoked, err := r.IsRevoked(ctx, "shared")
				require.NoError(t, err)
				require.True(t, revoked)
			})
		})
	}
}

func TestRedisRevocationRegistry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clockFn := func() time.Time { return now }

	t.Run("shared between instances", func(t *testing.T) {
		mr := miniredis.RunT(t)
		a := newRedisRegistry(t, mr, clockFn)
		b := newRedisRegistry(t, mr, clockFn)

		require.NoError(t, a.Revoke(ctx, "token-a", now.Add(time.Hour)))
		revoked, err := b.IsRevoked(ctx, "token-a")
		require.NoError(t, err)
		require.True(t, revoked)
	})

	t.Run("keys are hashed and expire after the token", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r := newRedisRegistry(t, mr, clockFn)

		require.NoError(t, r.Revoke(ctx, "raw-session-token", now.Add(10*time.Minute)))

		keys := mr.Keys()
		require.Len(t, keys, 1)
		require.True(t, strings.HasPrefix(keys[0], "spotifeye:revoked:"))
		require.NotContains(t, keys[0], "raw-session-token")

		ttl := mr.TTL(keys[0])
		require.Greater(t, ttl, 10*time.Minute)
		require.LessOrEqual(t, ttl, 11*time.Minute+time.Second)

		mr.FastForward(12 * time.Minute)
		revoked, err := r.IsRevoked(ctx, "raw-session-token")
		require.NoError(t, err)
		require.False(t, revoked)
	})

	t.Run("server errors surface", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r := newRedisRegistry(t, mr, clockFn)
		mr.SetError("ERR server unavailable")

		_, err := r.IsRevoked(ctx, "token-a")
		require.Error(t, err)
		require.Error(t, r.Revoke(ctx, "token-a", now.Add(time.Hour)))
	})
}
