package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/workshop-planner/api/internal/calendar"
	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/platform/textutil"
	"github.com/workshop-planner/api/internal/repositories"
	"github.com/workshop-planner/api/internal/scheduling"
)

const (
	calendarEventCreated       = "calendar.event_created"
	calendarEventUpdated       = "calendar.event_updated"
	calendarEventDeleted       = "calendar.event_deleted"
	calendarEventPartial       = "calendar.partial"
	maxCalendarTitleLength     = 200
	maxCalendarDescriptionSize = 4000
)

var (
	// ErrCalendarInvalidInput indicates a malformed filter or manual event.
	ErrCalendarInvalidInput = errors.New("calendar: invalid input")
	// ErrCalendarNotFound indicates the manual event does not exist.
	ErrCalendarNotFound = errors.New("calendar: event not found")
	// ErrCalendarConflict indicates a manual event id collision.
	ErrCalendarConflict = errors.New("calendar: event already exists")
	// ErrCalendarForbidden indicates the caller may not change the event.
	ErrCalendarForbidden = errors.New("calendar: forbidden")
)

// CalendarValidationError names the manual event field that failed validation.
type CalendarValidationError struct {
	Field   string
	Message string
}

func (e *CalendarValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrCalendarInvalidInput, e.Field, e.Message)
}

func (e *CalendarValidationError) Unwrap() error {
	return ErrCalendarInvalidInput
}

func invalidField(field, message string) error {
	return &CalendarValidationError{Field: field, Message: message}
}

// CalendarServiceDeps bundles collaborators required to construct a calendar service.
type CalendarServiceDeps struct {
	Aggregator *calendar.Aggregator
	Events     repositories.CalendarEventRepository
	// EditorRoles may change any manual event; others only the events they created.
	EditorRoles []string
	Meter       metric.Meter
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type calendarService struct {
	aggregator  *calendar.Aggregator
	events      repositories.CalendarEventRepository
	editorRoles []string
	failures    metric.Int64Counter
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

var _ CalendarService = (*calendarService)(nil)

// NewCalendarService wires dependencies into a CalendarService implementation.
func NewCalendarService(deps CalendarServiceDeps) (CalendarService, error) {
	if deps.Aggregator == nil {
		return nil, errors.New("calendar service: aggregator is required")
	}
	if deps.Events == nil {
		return nil, errors.New("calendar service: event repository is required")
	}

	editors := calendar.NormalizeRoles(deps.EditorRoles)
	if len(editors) == 0 {
		editors = []string{calendar.RoleAdmin, calendar.RoleManager}
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

	return &calendarService{
		aggregator:  deps.Aggregator,
		events:      deps.Events,
		editorRoles: editors,
		failures:    counter(meterOrGlobal(deps.Meter), "calendar.source.failures", "Calendar sources that failed during aggregation"),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *calendarService) ListEvents(ctx context.Context, filter CalendarFilter) (CalendarView, error) {
	day, from, to, err := normalizeCalendarRange(filter)
	if err != nil {
		return CalendarView{}, err
	}
	for _, category := range filter.Categories {
		if !category.Valid() {
			return CalendarView{}, invalidField("category", fmt.Sprintf("unknown category %q", category))
		}
	}

	view := s.visibleTo(ctx, filter.Roles)
	events := calendar.FilterByCategory(view.Events, filter.Categories...)
	switch {
	case day != "":
		events = calendar.EventsForDay(events, day)
	case from != "" || to != "":
		events = calendar.EventsInRange(events, from, to)
	}
	view.Events = events
	return view, nil
}

func (s *calendarService) CreateEvent(ctx context.Context, cmd CalendarEventCommand) (CalendarView, error) {
	if len(calendar.NormalizeRoles(cmd.ActorRoles)) == 0 {
		return CalendarView{}, fmt.Errorf("%w: a role is required to create events", ErrCalendarForbidden)
	}
	event, err := s.buildEvent(cmd)
	if err != nil {
		return CalendarView{}, err
	}
	now := s.clock()
	event.ID = domain.ManualEventIDPrefix + strings.ToLower(s.newID())
	event.CreatedBy = strings.TrimSpace(cmd.ActorID)
	event.CreatedAt = now
	event.UpdatedAt = now

	created, err := s.events.Insert(ctx, event)
	if err != nil {
		return CalendarView{}, mapCalendarRepoError(event.ID, err)
	}
	s.logger(ctx, calendarEventCreated, map[string]any{"eventId": created.ID, "category": string(created.Category), "actorId": cmd.ActorID})
	return s.visibleTo(ctx, cmd.ActorRoles), nil
}

func (s *calendarService) UpdateEvent(ctx context.Context, cmd CalendarEventCommand) (CalendarView, error) {
	existing, err := s.loadManual(ctx, cmd.EventID)
	if err != nil {
		return CalendarView{}, err
	}
	if !s.canEdit(existing, cmd.ActorID, cmd.ActorRoles) {
		return CalendarView{}, fmt.Errorf("%w: event %s", ErrCalendarForbidden, existing.ID)
	}
	event, err := s.buildEvent(cmd)
	if err != nil {
		return CalendarView{}, err
	}
	event.ID = existing.ID
	event.CreatedBy = existing.CreatedBy
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = s.clock()

	if _, err := s.events.Update(ctx, event); err != nil {
		return CalendarView{}, mapCalendarRepoError(event.ID, err)
	}
	s.logger(ctx, calendarEventUpdated, map[string]any{"eventId": event.ID, "actorId": cmd.ActorID})
	return s.visibleTo(ctx, cmd.ActorRoles), nil
}

func (s *calendarService) DeleteEvent(ctx context.Context, cmd DeleteCalendarEventCommand) (CalendarView, error) {
	existing, err := s.loadManual(ctx, cmd.EventID)
	if err != nil {
		return CalendarView{}, err
	}
	if !s.canEdit(existing, cmd.ActorID, cmd.ActorRoles) {
		return CalendarView{}, fmt.Errorf("%w: event %s", ErrCalendarForbidden, existing.ID)
	}
	if err := s.events.Delete(ctx, existing.ID); err != nil {
		return CalendarView{}, mapCalendarRepoError(existing.ID, err)
	}
	s.logger(ctx, calendarEventDeleted, map[string]any{"eventId": existing.ID, "actorId": cmd.ActorID})
	return s.visibleTo(ctx, cmd.ActorRoles), nil
}

// visibleTo re-runs the aggregation and keeps only the events the roles may see.
func (s *calendarService) visibleTo(ctx context.Context, roles []string) CalendarView {
	view := s.aggregate(ctx)
	view.Events = calendar.FilterByAnyRole(view.Events, roles...)
	return view
}

func (s *calendarService) aggregate(ctx context.Context) CalendarView {
	result := s.aggregator.All(ctx)
	view := CalendarView{Events: result.Events, PartialSources: result.FailedSources()}
	for _, failure := range result.Failed {
		addCount(ctx, s.failures, 1, attribute.String("source", failure.Source))
		s.logger(ctx, calendarEventPartial, map[string]any{"source": failure.Source, "error": failure.Err.Error()})
	}
	if view.PartialSources == nil {
		view.PartialSources = []string{}
	}
	return view
}

func (s *calendarService) loadManual(ctx context.Context, eventID string) (CalendarEvent, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return CalendarEvent{}, invalidField("id", "event id is required")
	}
	if !strings.HasPrefix(id, domain.ManualEventIDPrefix) {
		return CalendarEvent{}, fmt.Errorf("%w: derived event %s cannot be changed", ErrCalendarForbidden, id)
	}
	event, err := s.events.Get(ctx, id)
	if err != nil {
		return CalendarEvent{}, mapCalendarRepoError(id, err)
	}
	if !event.Manual() {
		return CalendarEvent{}, fmt.Errorf("%w: event %s is not a manual event", ErrCalendarForbidden, id)
	}
	return event, nil
}

func (s *calendarService) canEdit(event CalendarEvent, actorID string, actorRoles []string) bool {
	for _, role := range calendar.NormalizeRoles(actorRoles) {
		for _, editor := range s.editorRoles {
			if role == editor {
				return true
			}
		}
	}
	actorID = strings.TrimSpace(actorID)
	return actorID != "" && actorID == event.CreatedBy
}

// buildEvent validates and normalises the command into a manual event.
func (s *calendarService) buildEvent(cmd CalendarEventCommand) (CalendarEvent, error) {
	title := textutil.PlainText(cmd.Title)
	if title == "" {
		return CalendarEvent{}, invalidField("title", "title is required")
	}
	title = textutil.Truncate(title, maxCalendarTitleLength)

	date, err := scheduling.ParseDay(cmd.Date)
	if err != nil {
		return CalendarEvent{}, invalidField("date", "date must be YYYY-MM-DD")
	}
	event := CalendarEvent{
		Title:       title,
		Description: textutil.Truncate(textutil.RichText(cmd.Description), maxCalendarDescriptionSize),
		Date:        scheduling.DayKey(date),
		EventType:   domain.EventTypeManual,
		Category:    domain.EventCategoryGeneral,
	}

	if raw := strings.TrimSpace(cmd.EndDate); raw != "" {
		end, err := scheduling.ParseDay(raw)
		if err != nil {
			return CalendarEvent{}, invalidField("endDate", "endDate must be YYYY-MM-DD")
		}
		if end.Before(date) {
			return CalendarEvent{}, invalidField("endDate", "endDate precedes date")
		}
		event.EndDate = scheduling.DayKey(end)
	}

	if raw := strings.TrimSpace(cmd.Time); raw != "" {
		clock, err := time.Parse("15:04", raw)
		if err != nil {
			return CalendarEvent{}, invalidField("time", "time must be HH:MM")
		}
		event.Time = clock.Format("15:04")
	}

	if raw := strings.TrimSpace(string(cmd.Category)); raw != "" {
		category := EventCategory(strings.ToLower(raw))
		if !category.Valid() {
			return CalendarEvent{}, invalidField("category", fmt.Sprintf("unknown category %q", raw))
		}
		event.Category = category
	}

	if cmd.VisibleRoles != nil {
		roles := calendar.NormalizeRoles(cmd.VisibleRoles)
		if len(roles) == 0 {
			return CalendarEvent{}, invalidField("visibleRoles", "at least one role is required")
		}
		event.VisibleRoles = roles
	} else {
		event.VisibleRoles = s.aggregator.Policy().DefaultRoles(event.Category)
	}
	if labels := textutil.Labels(cmd.Labels); labels != nil {
		event.Metadata = make(map[string]any, len(labels))
		for key, value := range labels {
			event.Metadata[key] = value
		}
	}
	return event, nil
}

func normalizeCalendarRange(filter CalendarFilter) (day, from, to string, err error) {
	parse := func(field, value string) (string, error) {
		value = strings.TrimSpace(value)
		if value == "" {
			return "", nil
		}
		parsed, err := scheduling.ParseDay(value)
		if err != nil {
			return "", invalidField(field, field+" must be YYYY-MM-DD")
		}
		return scheduling.DayKey(parsed), nil
	}
	if day, err = parse("day", filter.Day); err != nil {
		return "", "", "", err
	}
	if from, err = parse("from", filter.From); err != nil {
		return "", "", "", err
	}
	if to, err = parse("to", filter.To); err != nil {
		return "", "", "", err
	}
	switch {
	case from != "" && to == "":
		to = "9999-12-31"
	case to != "" && from == "":
		from = "0000-01-01"
	}
	if from > to {
		return "", "", "", invalidField("to", "to precedes from")
	}
	return day, from, to, nil
}

func mapCalendarRepoError(id string, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %s", ErrCalendarNotFound, id)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %s", ErrCalendarConflict, id)
		}
	}
	return err
}
