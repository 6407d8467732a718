package calendar

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domain "github.com/workshop-planner/api/internal/domain"
)

const defaultSourceTimeout = 5 * time.Second

// SourceFailure records a source that contributed no events because its fetch failed.
type SourceFailure struct {
	Source string
	Err    error
}

// Result is the merged, date-ordered output of one aggregation run.
type Result struct {
	Events []domain.CalendarEvent
	Failed []SourceFailure
}

// FailedSources lists the names of sources that failed during the run.
func (r Result) FailedSources() []string {
	names := make([]string, 0, len(r.Failed))
	for _, failure := range r.Failed {
		names = append(names, failure.Source)
	}
	return names
}

// Aggregator runs every registered source and merges their events.
type Aggregator struct {
	registry *Registry
	policy   VisibilityPolicy
	logger   *zap.Logger
	timeout  time.Duration
}

// AggregatorOption customises an Aggregator.
type AggregatorOption func(*Aggregator)

// WithVisibilityPolicy overrides the default visible-role policy.
func WithVisibilityPolicy(policy VisibilityPolicy) AggregatorOption {
	return func(a *Aggregator) {
		a.policy = policy
	}
}

// WithLogger sets the logger used to report failing sources and dropped events.
func WithLogger(logger *zap.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSourceTimeout bounds each source fetch.
func WithSourceTimeout(timeout time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// NewAggregator constructs an aggregator over the registry.
func NewAggregator(registry *Registry, opts ...AggregatorOption) (*Aggregator, error) {
	if registry == nil {
		return nil, errors.New("calendar aggregator: registry is required")
	}
	a := &Aggregator{
		registry: registry,
		policy:   DefaultVisibilityPolicy(),
		logger:   zap.NewNop(),
		timeout:  defaultSourceTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Policy exposes the visibility policy applied to aggregated events.
func (a *Aggregator) Policy() VisibilityPolicy {
	return a.policy
}

// All fetches every source concurrently, applies default visible roles and returns the
// events sorted by date, then time, then id. A failing source contributes nothing and is
// listed in Result.Failed; the remaining sources are still merged.
func (a *Aggregator) All(ctx context.Context) Result {
	adapters := a.registry.Adapters()
	collected := make([][]domain.CalendarEvent, len(adapters))
	failures := make([]error, len(adapters))

	var group errgroup.Group
	for i, adapter := range adapters {
		group.Go(func() error {
			sourceCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			events, err := adapter.Collect(sourceCtx)
			if err != nil {
				failures[i] = err
				return nil
			}
			collected[i] = events
			return nil
		})
	}
	_ = group.Wait()

	result := Result{Events: make([]domain.CalendarEvent, 0)}
	for i, adapter := range adapters {
		if err := failures[i]; err != nil {
			a.logger.Warn("calendar source unavailable",
				zap.String("source", adapter.Name()),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, SourceFailure{Source: adapter.Name(), Err: err})
			continue
		}
		for _, event := range collected[i] {
			event = a.policy.Apply(event)
			if len(event.VisibleRoles) == 0 {
				a.logger.Warn("calendar event dropped without visible roles",
					zap.String("source", adapter.Name()),
					zap.String("event_id", event.ID),
				)
				continue
			}
			result.Events = append(result.Events, event)
		}
	}

	SortEvents(result.Events)
	return result
}

// SortEvents orders events ascending by date, then time, then id.
func SortEvents(events []domain.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].ID < events[j].ID
	})
}
