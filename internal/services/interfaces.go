package services

import (
	"context"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	WorkItem           = domain.WorkItem
	WorkItemRef        = domain.WorkItemRef
	WorkItemStatus     = domain.WorkItemStatus
	Capacity           = domain.Capacity
	CapacityDay        = domain.CapacityDay
	CapacityWindow     = domain.CapacityWindow
	CapacityOverview   = domain.CapacityOverview
	ScheduleSuggestion = domain.ScheduleSuggestion
	CalendarEvent      = domain.CalendarEvent
	EventCategory      = domain.EventCategory
	SystemHealthReport = domain.SystemHealthReport
)

// ScheduleService proposes production slots, reports capacity and commits accepted schedules.
type ScheduleService interface {
	Suggestions(ctx context.Context, workItemID string) (SuggestionResult, error)
	CapacityWindow(ctx context.Context, workItemID string, start time.Time) (CapacityWindow, error)
	CapacityOverview(ctx context.Context, from, to time.Time) (CapacityOverview, error)
	AcceptSchedule(ctx context.Context, cmd AcceptScheduleCommand) (WorkItem, error)
	ReleaseSchedule(ctx context.Context, cmd ReleaseScheduleCommand) (WorkItem, error)
}

// CalendarService serves the merged role-filtered calendar and manages manual events.
type CalendarService interface {
	ListEvents(ctx context.Context, filter CalendarFilter) (CalendarView, error)
	CreateEvent(ctx context.Context, cmd CalendarEventCommand) (CalendarView, error)
	UpdateEvent(ctx context.Context, cmd CalendarEventCommand) (CalendarView, error)
	DeleteEvent(ctx context.Context, cmd DeleteCalendarEventCommand) (CalendarView, error)
}

// SystemService exposes runtime health for the health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// SuggestionResult carries ranked suggestions. Manual is set when no automatic
// suggestion can be computed and dates must be entered by hand.
type SuggestionResult struct {
	WorkItemID  string
	Manual      bool
	Capacity    Capacity
	Suggestions []ScheduleSuggestion
}

// AcceptScheduleCommand commits a start date, and optionally an end date, for a work item.
type AcceptScheduleCommand struct {
	WorkItemID string
	StartDate  time.Time
	EndDate    *time.Time
	ActorID    string
}

// ReleaseScheduleCommand returns a scheduled work item to the waiting backlog.
type ReleaseScheduleCommand struct {
	WorkItemID string
	ActorID    string
}

// CalendarFilter narrows the merged calendar. Zero values disable the corresponding filter,
// except Roles which must contain at least one role to see anything.
type CalendarFilter struct {
	Roles      []string
	Categories []EventCategory
	Day        string
	From       string
	To         string
}

// CalendarView is the merged calendar plus the sources that could not be read.
type CalendarView struct {
	Events         []CalendarEvent
	PartialSources []string
}

// CalendarEventCommand creates or updates a manual event. A nil VisibleRoles takes the
// category default; a non-nil empty slice is rejected.
type CalendarEventCommand struct {
	EventID      string
	Title        string
	Description  string
	Date         string
	EndDate      string
	Time         string
	Category     EventCategory
	VisibleRoles []string
	Labels       map[string]string
	ActorID      string
	ActorRoles   []string
}

// DeleteCalendarEventCommand removes a manual event.
type DeleteCalendarEventCommand struct {
	EventID    string
	ActorID    string
	ActorRoles []string
}
