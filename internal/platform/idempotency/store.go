// Package idempotency replays the recorded outcome when a client retries a write with the same
// Idempotency-Key, so a double-submitted schedule acceptance or manual event is applied once.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultTTL bounds how long a key and its recorded outcome are kept.
const DefaultTTL = 24 * time.Hour

// Claim describes what the store found for a key.
type Claim int

const (
	// ClaimAcquired means the caller owns the key and must run the write.
	ClaimAcquired Claim = iota
	// ClaimReplay means the write already finished and Entry holds its outcome.
	ClaimReplay
	// ClaimInFlight means another request holding the key has not finished yet.
	ClaimInFlight
)

// Entry is the stored state of a key.
type Entry struct {
	Key         string
	Fingerprint string
	Done        bool
	Status      int
	ContentType string
	Location    string
	Body        []byte
	ExpiresAt   time.Time
}

// Outcome is the response recorded against a key once the write completes.
type Outcome struct {
	Status      int
	ContentType string
	Location    string
	Body        []byte
}

// Store persists claimed keys and their outcomes.
type Store interface {
	// Claim reserves key for the request fingerprint. A key already held for a different
	// fingerprint yields ErrKeyReused.
	Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, Entry, error)
	Complete(ctx context.Context, key, fingerprint string, outcome Outcome, now time.Time, ttl time.Duration) error
	// Forget drops the key so the next request with it runs again.
	Forget(ctx context.Context, key string) error
}

// ErrKeyReused is returned when a key is presented with a different request.
var ErrKeyReused = errors.New("idempotency: key already used for a different request")

func pendingEntry(key, fingerprint string, now time.Time, ttl time.Duration) Entry {
	return Entry{
		Key:         key,
		Fingerprint: fingerprint,
		ExpiresAt:   now.Add(ttl),
	}
}

func completedEntry(key, fingerprint string, outcome Outcome, now time.Time, ttl time.Duration) Entry {
	entry := pendingEntry(key, fingerprint, now, ttl)
	entry.Done = true
	entry.Status = outcome.Status
	entry.ContentType = outcome.ContentType
	entry.Location = outcome.Location
	if len(outcome.Body) > 0 {
		entry.Body = append([]byte(nil), outcome.Body...)
	}
	return entry
}

// classify decides the claim for an existing unexpired entry.
func classify(entry Entry, fingerprint string) (Claim, error) {
	if entry.Fingerprint != fingerprint {
		return ClaimInFlight, ErrKeyReused
	}
	if entry.Done {
		return ClaimReplay, nil
	}
	return ClaimInFlight, nil
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
