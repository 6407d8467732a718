package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection  = "idempotency_keys"
	defaultMaxAttempts = 5
)

// FirestoreOption customises FirestoreStore.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection holding keys.
func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithMaxAttempts bounds transaction retries on contention.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(s *FirestoreStore) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// FirestoreStore shares keys across API instances. Documents carry expires_at so a Firestore
// TTL policy can purge them.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

// NewFirestoreStore constructs a store on the given client.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: firestore client is required")
	}
	s := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Claim implements Store inside a transaction so concurrent claims for one key serialise.
func (s *FirestoreStore) Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, Entry, error) {
	ttl = effectiveTTL(ttl)
	now = now.UTC()
	ref := s.doc(key)

	var (
		claim Claim
		entry Entry
	)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			var doc keyDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			existing := doc.entry()
			if now.Before(existing.ExpiresAt) {
				entry = existing
				claim, err = classify(existing, fingerprint)
				return err
			}
		}
		entry = pendingEntry(key, fingerprint, now, ttl)
		claim = ClaimAcquired
		return tx.Set(ref, newKeyDocument(entry, now))
	}, firestore.MaxAttempts(s.maxAttempts))
	if err != nil {
		return ClaimInFlight, Entry{}, err
	}
	return claim, entry, nil
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, outcome Outcome, now time.Time, ttl time.Duration) error {
	ttl = effectiveTTL(ttl)
	now = now.UTC()
	ref := s.doc(key)
	entry := completedEntry(key, fingerprint, outcome, now, ttl)

	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var doc keyDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrKeyReused
			}
		}
		return tx.Set(ref, newKeyDocument(entry, now))
	}, firestore.MaxAttempts(s.maxAttempts))
}

// Forget implements Store.
func (s *FirestoreStore) Forget(ctx context.Context, key string) error {
	_, err := s.doc(key).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(digest([]byte(key)))
}

type keyDocument struct {
	Key         string    `firestore:"key"`
	Fingerprint string    `firestore:"fingerprint"`
	Done        bool      `firestore:"done"`
	Status      int       `firestore:"status"`
	ContentType string    `firestore:"contentType"`
	Location    string    `firestore:"location"`
	Body        []byte    `firestore:"body"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
	ExpiresAt   time.Time `firestore:"expires_at"`
}

func newKeyDocument(entry Entry, now time.Time) keyDocument {
	return keyDocument{
		Key:         entry.Key,
		Fingerprint: entry.Fingerprint,
		Done:        entry.Done,
		Status:      entry.Status,
		ContentType: entry.ContentType,
		Location:    entry.Location,
		Body:        entry.Body,
		UpdatedAt:   now,
		ExpiresAt:   entry.ExpiresAt,
	}
}

func (d keyDocument) entry() Entry {
	return Entry{
		Key:         d.Key,
		Fingerprint: d.Fingerprint,
		Done:        d.Done,
		Status:      d.Status,
		ContentType: d.ContentType,
		Location:    d.Location,
		Body:        d.Body,
		ExpiresAt:   d.ExpiresAt,
	}
}
