package cache

import (
	"context"
	"sync"
	"time"
)

// TokenBlacklist records revoked access tokens until they expire on their
// own. IsRevoked must fail closed only on storage errors, not on misses.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryTokenBlacklist is the fallback used when Redis is unavailable.
// Entries are pruned lazily on lookup.
type MemoryTokenBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryTokenBlacklist() *MemoryTokenBlacklist {
	return &MemoryTokenBlacklist{entries: make(map[string]time.Time)}
}

func (b *MemoryTokenBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[hashToken(token)] = time.Now().Add(ttl)
	return nil
}

func (b *MemoryTokenBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := hashToken(token)
	expiry, ok := b.entries[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(b.entries, key)
		return false, nil
	}
	return true, nil
}
