package idempotency

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps keys in process. It suits single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries *gocache.Cache
}

// NewMemoryStore constructs an empty store that sweeps expired keys every cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	if cleanup <= 0 {
		cleanup = time.Hour
	}
	return &MemoryStore{entries: gocache.New(DefaultTTL, cleanup)}
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, Entry, error) {
	ttl = effectiveTTL(ttl)
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.entries.Get(key); ok {
		entry := cached.(Entry)
		if now.Before(entry.ExpiresAt) {
			claim, err := classify(entry, fingerprint)
			return claim, entry, err
		}
	}
	entry := pendingEntry(key, fingerprint, now, ttl)
	s.entries.Set(key, entry, ttl)
	return ClaimAcquired, entry, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, outcome Outcome, now time.Time, ttl time.Duration) error {
	ttl = effectiveTTL(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.entries.Get(key); ok && cached.(Entry).Fingerprint != fingerprint {
		return ErrKeyReused
	}
	s.entries.Set(key, completedEntry(key, fingerprint, outcome, now.UTC(), ttl), ttl)
	return nil
}

// Forget implements Store.
func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Delete(key)
	return nil
}
