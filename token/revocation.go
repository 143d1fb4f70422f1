package token

import (
	"context"
	"sync"
	"time"
)

// RevocationRegistry records session tokens that must never validate again
type RevocationRegistry interface {
	// Revoke is idempotent and safe on already revoked or expired tokens
	Revoke(ctx context.Context, raw string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, raw string) (bool, error)
	// TryRevoke revokes raw and reports whether this call was the one that revoked it
	TryRevoke(ctx context.Context, raw string, expiresAt time.Time) (bool, error)
}

// InMemoryRevocationRegistry is a process-local set keyed by the raw token string.
// Entries are never removed.
type InMemoryRevocationRegistry struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

var _ RevocationRegistry = (*InMemoryRevocationRegistry)(nil)

func NewInMemoryRevocationRegistry() *InMemoryRevocationRegistry {
	return &InMemoryRevocationRegistry{
		revoked: make(map[string]time.Time),
	}
}

func (r *InMemoryRevocationRegistry) Revoke(ctx context.Context, raw string, expiresAt time.Time) error {
	_, err := r.TryRevoke(ctx, raw, expiresAt)
	return err
}

func (r *InMemoryRevocationRegistry) TryRevoke(_ context.Context, raw string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.revoked[raw]; exists {
		return false, nil
	}
	r.revoked[raw] = expiresAt
	return true, nil
}

func (r *InMemoryRevocationRegistry) IsRevoked(_ context.Context, raw string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.revoked[raw]
	return exists, nil
}

// Len reports the number of revoked tokens held
func (r *InMemoryRevocationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}
