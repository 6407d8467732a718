package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/repositories"
	"github.com/workshop-planner/api/internal/scheduling"
)

const (
	scheduleEventSuggested       = "schedule.suggested"
	scheduleEventManual          = "schedule.manual"
	scheduleEventAccepted        = "schedule.accepted"
	scheduleEventReleased        = "schedule.released"
	scheduleEventRosterFallback  = "schedule.roster_fallback"
	scheduleEventPublishFailed   = "schedule.publish_failed"
	scheduleActionAccepted       = "accepted"
	scheduleActionReleased       = "released"
	rosterCacheKey               = "capacity"
	defaultRosterCacheTTL        = 5 * time.Minute
	maxCapacityOverviewSpan      = 92
	defaultCapacityOverviewWeeks = 4
)

var (
	// ErrScheduleInvalidInput indicates the command or query was malformed.
	ErrScheduleInvalidInput = errors.New("schedule: invalid input")
	// ErrScheduleNotFound indicates the work item does not exist.
	ErrScheduleNotFound = errors.New("schedule: work item not found")
	// ErrScheduleConflict indicates the work item changed state before the write committed.
	ErrScheduleConflict = errors.New("schedule: work item state changed")
)

// ScheduleEventPublisher announces accepted and released schedules to downstream consumers.
type ScheduleEventPublisher interface {
	PublishScheduleChange(ctx context.Context, message ScheduleChangeMessage) (string, error)
}

// ScheduleChangeMessage is the payload delivered via Pub/Sub when a schedule changes.
type ScheduleChangeMessage struct {
	MessageID  string    `json:"messageId"`
	WorkItemID string    `json:"workItemId"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	StartDate  string    `json:"startDate,omitempty"`
	EndDate    string    `json:"endDate,omitempty"`
	ActorID    string    `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ScheduleServiceDeps bundles collaborators required to construct a schedule service.
type ScheduleServiceDeps struct {
	WorkItems        repositories.WorkItemRepository
	Roster           repositories.RosterRepository
	Publisher        ScheduleEventPublisher
	CapacityPolicy   scheduling.CapacityPolicy
	SuggestionPolicy scheduling.SuggestionPolicy
	IncludeCapacity  bool
	// RosterCacheTTL bounds how long computed capacity is reused. Zero selects the
	// default, a negative value disables caching.
	RosterCacheTTL time.Duration
	Meter          metric.Meter
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type scheduleService struct {
	workItems        repositories.WorkItemRepository
	roster           repositories.RosterRepository
	publisher        ScheduleEventPublisher
	capacityPolicy   scheduling.CapacityPolicy
	suggestionPolicy scheduling.SuggestionPolicy
	includeCapacity  bool
	capacityCache    *cache.Cache
	suggested        metric.Int64Counter
	fallbacks        metric.Int64Counter
	clock            func() time.Time
	newID            func() string
	logger           func(context.Context, string, map[string]any)
}

var _ ScheduleService = (*scheduleService)(nil)

// NewScheduleService wires dependencies into a ScheduleService implementation.
func NewScheduleService(deps ScheduleServiceDeps) (ScheduleService, error) {
	if deps.WorkItems == nil {
		return nil, errors.New("schedule service: work item repository is required")
	}
	if deps.Roster == nil {
		return nil, errors.New("schedule service: roster repository is required")
	}

	capacityPolicy := deps.CapacityPolicy
	defaults := scheduling.DefaultCapacityPolicy()
	if capacityPolicy.FallbackEmployees <= 0 {
		capacityPolicy.FallbackEmployees = defaults.FallbackEmployees
	}
	if capacityPolicy.FallbackDailyHours <= 0 {
		capacityPolicy.FallbackDailyHours = defaults.FallbackDailyHours
	}

	suggestionPolicy := deps.SuggestionPolicy
	if suggestionPolicy.WeeklyCandidates <= 0 {
		suggestionPolicy.WeeklyCandidates = scheduling.DefaultWeeklyCandidates
	}
	if suggestionPolicy.MaterialsSafetyMarginDays < 0 {
		suggestionPolicy.MaterialsSafetyMarginDays = 0
	}

	ttl := deps.RosterCacheTTL
	if ttl == 0 {
		ttl = defaultRosterCacheTTL
	}
	var capacityCache *cache.Cache
	if ttl > 0 {
		capacityCache = cache.New(ttl, 2*ttl)
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := meterOrGlobal(deps.Meter)
	return &scheduleService{
		workItems:        deps.WorkItems,
		roster:           deps.Roster,
		publisher:        deps.Publisher,
		capacityPolicy:   capacityPolicy,
		suggestionPolicy: suggestionPolicy,
		includeCapacity:  deps.IncludeCapacity,
		capacityCache:    capacityCache,
		suggested:        counter(meter, "schedule.suggestions", "Schedule suggestions generated"),
		fallbacks:        counter(meter, "schedule.capacity.fallback", "Capacity lookups answered with fallback values"),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *scheduleService) Suggestions(ctx context.Context, workItemID string) (SuggestionResult, error) {
	item, err := s.loadItem(ctx, workItemID)
	if err != nil {
		return SuggestionResult{}, err
	}

	result := SuggestionResult{WorkItemID: item.ID, Suggestions: []ScheduleSuggestion{}}
	if !scheduling.HasDuration(item) {
		result.Manual = true
		s.logger(ctx, scheduleEventManual, map[string]any{"workItemId": item.ID, "reason": "missing_duration"})
		return result, nil
	}

	scheduled, err := s.committedItems(ctx)
	if err != nil {
		return SuggestionResult{}, err
	}
	capacity := s.capacity(ctx)
	result.Capacity = capacity

	var window *domain.Capacity
	if s.includeCapacity {
		window = &capacity
	}
	result.Suggestions = scheduling.Propose(item, scheduled, window, s.suggestionPolicy, s.clock())
	result.Manual = len(result.Suggestions) == 0

	addCount(ctx, s.suggested, len(result.Suggestions))
	s.logger(ctx, scheduleEventSuggested, map[string]any{
		"workItemId":  item.ID,
		"suggestions": len(result.Suggestions),
		"fallback":    capacity.Fallback,
	})
	return result, nil
}

func (s *scheduleService) CapacityWindow(ctx context.Context, workItemID string, start time.Time) (CapacityWindow, error) {
	if start.IsZero() {
		return CapacityWindow{}, fmt.Errorf("%w: start date is required", ErrScheduleInvalidInput)
	}
	item, err := s.loadItem(ctx, workItemID)
	if err != nil {
		return CapacityWindow{}, err
	}
	if !scheduling.HasDuration(item) {
		return CapacityWindow{}, fmt.Errorf("%w: work item %s has no duration", ErrScheduleInvalidInput, item.ID)
	}
	scheduled, err := s.committedItems(ctx)
	if err != nil {
		return CapacityWindow{}, err
	}
	return scheduling.BuildCapacityWindow(start, item, scheduled, s.capacity(ctx)), nil
}

func (s *scheduleService) CapacityOverview(ctx context.Context, from, to time.Time) (CapacityOverview, error) {
	if from.IsZero() {
		from = s.clock()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 7*defaultCapacityOverviewWeeks-1)
	}
	from, to = scheduling.Normalize(from), scheduling.Normalize(to)
	if to.Before(from) {
		return CapacityOverview{}, fmt.Errorf("%w: range end precedes start", ErrScheduleInvalidInput)
	}
	if scheduling.CalendarDaysBetween(from, to) > maxCapacityOverviewSpan {
		return CapacityOverview{}, fmt.Errorf("%w: range exceeds %d days", ErrScheduleInvalidInput, maxCapacityOverviewSpan)
	}
	scheduled, err := s.committedItems(ctx)
	if err != nil {
		return CapacityOverview{}, err
	}
	return scheduling.LoadOverview(from, to, scheduled, s.capacity(ctx)), nil
}

func (s *scheduleService) AcceptSchedule(ctx context.Context, cmd AcceptScheduleCommand) (WorkItem, error) {
	if cmd.StartDate.IsZero() {
		return WorkItem{}, fmt.Errorf("%w: start date is required", ErrScheduleInvalidInput)
	}
	start := scheduling.Normalize(cmd.StartDate)
	if scheduling.IsWeekend(start) {
		return WorkItem{}, fmt.Errorf("%w: start date %s is not a working day", ErrScheduleInvalidInput, scheduling.DayKey(start))
	}

	item, err := s.loadItem(ctx, cmd.WorkItemID)
	if err != nil {
		return WorkItem{}, err
	}

	var end time.Time
	switch {
	case cmd.EndDate != nil && !cmd.EndDate.IsZero():
		end = scheduling.Normalize(*cmd.EndDate)
	case scheduling.HasDuration(item):
		end = scheduling.AddWorkingDays(start, scheduling.NeededDays(item)-1)
	default:
		return WorkItem{}, fmt.Errorf("%w: end date is required for work items without duration", ErrScheduleInvalidInput)
	}
	if end.Before(start) {
		return WorkItem{}, fmt.Errorf("%w: end date precedes start date", ErrScheduleInvalidInput)
	}
	if scheduling.IsWeekend(end) {
		return WorkItem{}, fmt.Errorf("%w: end date %s is not a working day", ErrScheduleInvalidInput, scheduling.DayKey(end))
	}

	updated, err := s.workItems.UpdateSchedule(ctx, repositories.WorkItemScheduleUpdate{
		ID:        item.ID,
		Status:    domain.WorkItemStatusScheduled,
		StartDate: &start,
		EndDate:   &end,
		ExpectedStatuses: []domain.WorkItemStatus{
			domain.WorkItemStatusWaiting,
			domain.WorkItemStatusOnHold,
			domain.WorkItemStatusScheduled,
		},
		UpdatedAt: s.clock(),
	})
	if err != nil {
		return WorkItem{}, s.mapWriteError(item.ID, err)
	}

	s.publish(ctx, scheduleActionAccepted, updated, cmd.ActorID)
	s.logger(ctx, scheduleEventAccepted, map[string]any{
		"workItemId": updated.ID,
		"startDate":  scheduling.DayKey(start),
		"endDate":    scheduling.DayKey(end),
		"actorId":    cmd.ActorID,
	})
	return updated, nil
}

func (s *scheduleService) ReleaseSchedule(ctx context.Context, cmd ReleaseScheduleCommand) (WorkItem, error) {
	id := strings.TrimSpace(cmd.WorkItemID)
	if id == "" {
		return WorkItem{}, fmt.Errorf("%w: work item id is required", ErrScheduleInvalidInput)
	}
	updated, err := s.workItems.UpdateSchedule(ctx, repositories.WorkItemScheduleUpdate{
		ID:               id,
		Status:           domain.WorkItemStatusWaiting,
		ExpectedStatuses: []domain.WorkItemStatus{domain.WorkItemStatusScheduled},
		UpdatedAt:        s.clock(),
	})
	if err != nil {
		return WorkItem{}, s.mapWriteError(id, err)
	}

	s.publish(ctx, scheduleActionReleased, updated, cmd.ActorID)
	s.logger(ctx, scheduleEventReleased, map[string]any{"workItemId": updated.ID, "actorId": cmd.ActorID})
	return updated, nil
}

func (s *scheduleService) loadItem(ctx context.Context, workItemID string) (WorkItem, error) {
	id := strings.TrimSpace(workItemID)
	if id == "" {
		return WorkItem{}, fmt.Errorf("%w: work item id is required", ErrScheduleInvalidInput)
	}
	item, err := s.workItems.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return WorkItem{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
		}
		return WorkItem{}, err
	}
	if item.ID == "" {
		item.ID = id
	}
	return item, nil
}

func (s *scheduleService) committedItems(ctx context.Context) ([]WorkItem, error) {
	return s.workItems.ListByStatus(ctx, domain.WorkItemStatusScheduled, domain.WorkItemStatusInProgress)
}

// capacity resolves the daily workforce capacity. The fallback is never cached, so the
// next lookup reads the roster again.
func (s *scheduleService) capacity(ctx context.Context) Capacity {
	if s.capacityCache != nil {
		if cached, ok := s.capacityCache.Get(rosterCacheKey); ok {
			if capacity, ok := cached.(Capacity); ok {
				return capacity
			}
		}
	}

	roster, err := s.roster.ListActive(ctx)
	if err != nil {
		addCount(ctx, s.fallbacks, 1, attribute.String("reason", "roster_unavailable"))
		s.logger(ctx, scheduleEventRosterFallback, map[string]any{"error": err.Error()})
		return scheduling.FallbackCapacity(s.capacityPolicy)
	}

	capacity := scheduling.DailyCapacity(roster, s.capacityPolicy)
	if capacity.Fallback {
		addCount(ctx, s.fallbacks, 1, attribute.String("reason", "no_shop_floor_staff"))
		s.logger(ctx, scheduleEventRosterFallback, map[string]any{"rosterSize": len(roster)})
		return capacity
	}
	if s.capacityCache != nil {
		s.capacityCache.SetDefault(rosterCacheKey, capacity)
	}
	return capacity
}

func (s *scheduleService) publish(ctx context.Context, action string, item WorkItem, actorID string) {
	if s.publisher == nil {
		return
	}
	msg := ScheduleChangeMessage{
		MessageID:  s.newID(),
		WorkItemID: item.ID,
		Action:     action,
		Status:     string(item.Status),
		ActorID:    strings.TrimSpace(actorID),
		OccurredAt: s.clock(),
	}
	if item.StartDate != nil {
		msg.StartDate = scheduling.DayKey(*item.StartDate)
	}
	if item.EndDate != nil {
		msg.EndDate = scheduling.DayKey(*item.EndDate)
	}
	if _, err := s.publisher.PublishScheduleChange(ctx, msg); err != nil {
		s.logger(ctx, scheduleEventPublishFailed, map[string]any{
			"workItemId": item.ID,
			"action":     action,
			"error":      err.Error(),
		})
	}
}

func (s *scheduleService) mapWriteError(id string, err error) error {
	var itemErr *repositories.WorkItemError
	if errors.As(err, &itemErr) {
		switch itemErr.Code {
		case repositories.WorkItemErrorStatusChanged:
			return fmt.Errorf("%w: %s", ErrScheduleConflict, itemErr.Message)
		case repositories.WorkItemErrorInvalidInput:
			return fmt.Errorf("%w: %s", ErrScheduleInvalidInput, itemErr.Message)
		}
	}
	if isRepoNotFound(err) {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
