// Package calendar merges events from independent record sources into one
// date-ordered list and serves role, category and day filtering over it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	domain "github.com/workshop-planner/api/internal/domain"
)

// Source fetches raw records of one kind and maps each record to at most one event.
// Transform must be pure: the same record always yields the same event.
type Source[T any] interface {
	Fetch(ctx context.Context) ([]T, error)
	Transform(record T) (domain.CalendarEvent, bool)
}

// Adapter is the type-erased form of a Source held by the registry.
type Adapter interface {
	Name() string
	Collect(ctx context.Context) ([]domain.CalendarEvent, error)
}

type sourceAdapter[T any] struct {
	name   string
	source Source[T]
}

func (a sourceAdapter[T]) Name() string { return a.name }

func (a sourceAdapter[T]) Collect(ctx context.Context) ([]domain.CalendarEvent, error) {
	records, err := a.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]domain.CalendarEvent, 0, len(records))
	for _, record := range records {
		if event, ok := a.source.Transform(record); ok {
			events = append(events, event)
		}
	}
	return events, nil
}

// Adapt wraps a typed source so it can be registered.
func Adapt[T any](name string, source Source[T]) Adapter {
	return sourceAdapter[T]{name: strings.TrimSpace(name), source: source}
}

// Registry holds the calendar sources in registration order.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

// NewRegistry constructs a registry pre-populated with the supplied adapters.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{}
	for _, adapter := range adapters {
		if err := r.Add(adapter); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends an adapter. Names must be unique.
func (r *Registry) Add(adapter Adapter) error {
	if adapter == nil {
		return errors.New("calendar registry: adapter is required")
	}
	name := strings.TrimSpace(adapter.Name())
	if name == "" {
		return errors.New("calendar registry: adapter name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.adapters {
		if existing.Name() == name {
			return fmt.Errorf("calendar registry: source %q already registered", name)
		}
	}
	r.adapters = append(r.adapters, adapter)
	return nil
}

// Register adapts and adds a typed source.
func Register[T any](r *Registry, name string, source Source[T]) error {
	if source == nil {
		return fmt.Errorf("calendar registry: source %q is nil", name)
	}
	return r.Add(Adapt(name, source))
}

// Adapters returns a snapshot of the registered adapters.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Names lists the registered source names in order.
func (r *Registry) Names() []string {
	adapters := r.Adapters()
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}
	return names
}
