package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RevocationGracePeriod keeps a revoked entry alive slightly past the token's own expiry
// so clock skew between instances cannot reopen a window.
const RevocationGracePeriod = time.Minute

// RedisRevocationRegistry persists revocations in Redis so they survive restarts and are
// shared between instances. Entries expire once the token could no longer pass the codec.
type RedisRevocationRegistry struct {
	client    redis.UniversalClient
	keyPrefix string
	nowFunc   func() time.Time
}

var _ RevocationRegistry = (*RedisRevocationRegistry)(nil)

type RedisRevocationOption func(*RedisRevocationRegistry)

func WithRedisNowFunc(now func() time.Time) RedisRevocationOption {
	return func(r *RedisRevocationRegistry) {
		r.nowFunc = now
	}
}

// NewRedisRevocationRegistry wraps an existing client; the caller owns its lifecycle
func NewRedisRevocationRegistry(client redis.UniversalClient, keyPrefix string, options ...RedisRevocationOption) *RedisRevocationRegistry {
	r := &RedisRevocationRegistry{
		client:    client,
		keyPrefix: keyPrefix,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *RedisRevocationRegistry) Revoke(ctx context.Context, raw string, expiresAt time.Time) error {
	_, err := r.TryRevoke(ctx, raw, expiresAt)
	return err
}

func (r *RedisRevocationRegistry) TryRevoke(ctx context.Context, raw string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.nowFunc()) + RevocationGracePeriod
	if ttl < RevocationGracePeriod {
		ttl = RevocationGracePeriod
	}
	created, err := r.client.SetNX(ctx, r.key(raw), expiresAt.Unix(), ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to record revocation")
	}
	return created, nil
}

func (r *RedisRevocationRegistry) IsRevoked(ctx context.Context, raw string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(raw)).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to check revocation")
	}
	return n > 0, nil
}

// Ping verifies the backing server is reachable
func (r *RedisRevocationRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// key hashes the token so raw credentials never reach the store
func (r *RedisRevocationRegistry) key(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return r.keyPrefix + "revoked:" + hex.EncodeToString(sum[:])
}
