package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Snapshot is a decoded document.
type Snapshot[T any] struct {
	ID        string
	Data      T
	UpdatedAt time.Time
}

// Scope narrows a collection query.
type Scope func(firestore.Query) firestore.Query

// Collection reads and writes one collection, decoding documents into T through its firestore
// struct tags.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a collection name to the provider's client.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Ref resolves the document reference for id, for use inside transactions.
func (c *Collection[T]) Ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, WrapError(c.op("ref"), errors.New("document id is required"))
	}
	if c.provider == nil || c.name == "" {
		return nil, WrapError(c.op("ref"), errors.New("collection is not configured"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, WrapError(c.op("ref"), err)
	}
	return client.Collection(c.name).Doc(id), nil
}

// Get loads and decodes one document.
func (c *Collection[T]) Get(ctx context.Context, id string) (Snapshot[T], error) {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return Snapshot[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Snapshot[T]{}, WrapError(c.op("get"), err)
	}
	return decode[T](snap)
}

// List runs the scoped query and decodes every match. A nil scope lists the whole collection.
func (c *Collection[T]) List(ctx context.Context, scope Scope) ([]Snapshot[T], error) {
	if c.provider == nil || c.name == "" {
		return nil, WrapError(c.op("list"), errors.New("collection is not configured"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, WrapError(c.op("list"), err)
	}
	query := client.Collection(c.name).Query
	if scope != nil {
		query = scope(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []Snapshot[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(c.op("list"), err)
		}
		decoded, err := decode[T](snap)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
}

// Put writes value under id, replacing any existing document.
func (c *Collection[T]) Put(ctx context.Context, id string, value T) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, value); err != nil {
		return WrapError(c.op("put"), err)
	}
	return nil
}

// Create writes value under id and fails with a conflict when the document exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, value); err != nil {
		return WrapError(c.op("create"), err)
	}
	return nil
}

// Remove deletes id and fails with not found when it does not exist.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return WrapError(c.op("remove"), err)
	}
	return nil
}

func (c *Collection[T]) op(action string) string {
	if c == nil || c.name == "" {
		return "firestore." + action
	}
	return c.name + "." + action
}

func decode[T any](snap *firestore.DocumentSnapshot) (Snapshot[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Snapshot[T]{}, fmt.Errorf("firestore: decode %s: %w", snap.Ref.Path, err)
	}
	return Snapshot[T]{ID: snap.Ref.ID, Data: data, UpdatedAt: snap.UpdateTime}, nil
}
