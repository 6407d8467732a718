package di

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/platform/config"
	"github.com/workshop-planner/api/internal/repositories"
	"github.com/workshop-planner/api/internal/services"
)

type memoryRegistry struct {
	items  *memoryWorkItems
	roster *memoryRoster
	events *memoryEvents
	health repositories.HealthRepository
	closed bool
}

func (r *memoryRegistry) Close(context.Context) error { r.closed = true; return nil }

func (r *memoryRegistry) WorkItems() repositories.WorkItemRepository {
	if r.items == nil {
		return nil
	}
	return r.items
}

func (r *memoryRegistry) Roster() repositories.RosterRepository {
	if r.roster == nil {
		return nil
	}
	return r.roster
}

func (r *memoryRegistry) PurchaseOrders() repositories.PurchaseOrderRepository { return nil }
func (r *memoryRegistry) Quotes() repositories.QuoteRepository { return nil }

func (r *memoryRegistry) CalendarEvents() repositories.CalendarEventRepository {
	if r.events == nil {
		return nil
	}
	return r.events
}

func (r *memoryRegistry) Health() repositories.HealthRepository { return r.health }

type memoryWorkItems struct {
	items []domain.WorkItem
}

func (m *memoryWorkItems) FindByID(_ context.Context, id string) (domain.WorkItem, error) {
	for _, item := range m.items {
		if item.ID == id {
			return item, nil
		}
	}
	return domain.WorkItem{}, errors.New("not found")
}

func (m *memoryWorkItems) ListByStatus(_ context.Context, statuses ...domain.WorkItemStatus) ([]domain.WorkItem, error) {
	if len(statuses) == 0 {
		return append([]domain.WorkItem(nil), m.items...), nil
	}
	var out []domain.WorkItem
	for _, item := range m.items {
		for _, status := range statuses {
			if item.Status == status {
				out = append(out, item)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryWorkItems) UpdateSchedule(context.Context, repositories.WorkItemScheduleUpdate) (domain.WorkItem, error) {
	return domain.WorkItem{}, errors.New("read only")
}

type memoryRoster struct {
	entries []domain.RosterEntry
}

func (m *memoryRoster) ListActive(context.Context) ([]domain.RosterEntry, error) {
	return m.entries, nil
}

type memoryEvents struct{}

func (memoryEvents) List(context.Context) ([]domain.CalendarEvent, error) { return nil, nil }
func (memoryEvents) Get(context.Context, string) (domain.CalendarEvent, error) {
	return domain.CalendarEvent{}, errors.New("not found")
}
func (memoryEvents) Insert(_ context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error) {
	return event, nil
}
func (memoryEvents) Update(_ context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error) {
	return event, nil
}
func (memoryEvents) Delete(context.Context, string) error { return nil }

type staticHealth struct{}

func (staticHealth) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{
		Status: "ok",
		Checks: map[string]domain.SystemHealthCheck{"firestore": {Status: "ok"}},
	}, nil
}

type recordingPublisher struct {
	services.ScheduleEventPublisher
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), config.Config{}, nil); err == nil {
		t.Fatal("expected error without registry")
	}
}

func TestNewContainerBuildsWorkshopServices(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	reg := &memoryRegistry{
		items: &memoryWorkItems{items: []domain.WorkItem{
			{ID: "wi-1", Hours: 16, Status: domain.WorkItemStatusScheduled, StartDate: &start, EndDate: &end},
		}},
		roster: &memoryRoster{entries: []domain.RosterEntry{
			{ID: "emp-1", Role: "technician", Active: true, WeeklyHours: 40},
			{ID: "emp-2", Role: "technician", Active: true, WeeklyHours: 40},
		}},
		events: &memoryEvents{},
		health: staticHealth{},
	}
	cfg := config.Config{
		Scheduling: config.SchedulingConfig{
			WeeklyCandidates:   4,
			FallbackWorkers:    3,
			FallbackDailyHours: 24,
			RosterCacheTTL:     -1,
			IncludeCapacity:    true,
		},
		Calendar: config.CalendarConfig{
			QuoteFollowUpDays: 7,
			SourceTimeout:     time.Second,
			EditorRoles:       []string{"admin"},
		},
	}

	container, err := NewContainer(context.Background(), cfg, reg,
		WithClock(func() time.Time { return start }),
		WithBuildInfo(services.BuildInfo{Version: "test"}),
		WithSchedulePublisher(recordingPublisher{}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if container.Services.Schedule == nil || container.Services.Calendar == nil || container.Services.System == nil {
		t.Fatalf("expected all services wired, got %+v", container.Services)
	}

	overview, err := container.Services.Schedule.CapacityOverview(context.Background(), start, end)
	if err != nil {
		t.Fatalf("CapacityOverview: %v", err)
	}
	if overview.Capacity.Fallback || overview.Capacity.EmployeeCount != 2 {
		t.Fatalf("expected roster capacity of 2, got %+v", overview.Capacity)
	}

	view, err := container.Services.Calendar.ListEvents(context.Background(), services.CalendarFilter{Roles: []string{"technician"}})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(view.Events) != 1 || view.Events[0].ID != "prod-span-wi-1" {
		t.Fatalf("expected production span, got %+v", view.Events)
	}

	report, err := container.Services.System.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "test" {
		t.Fatalf("expected build version in report, got %q", report.Version)
	}
	if check, ok := report.Checks["roster"]; !ok || check.Detail != "2 active employees" {
		t.Fatalf("expected roster check, got %+v", report.Checks)
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !reg.closed {
		t.Fatal("expected registry to be closed")
	}
}

func TestNewContainerSkipsServicesWithoutRepositories(t *testing.T) {
	container, err := NewContainer(context.Background(), config.Config{}, &memoryRegistry{})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if container.Services.Schedule != nil || container.Services.Calendar != nil || container.Services.System != nil {
		t.Fatalf("expected no services, got %+v", container.Services)
	}
}

func TestNewContainerRejectsBadVisibilityPolicy(t *testing.T) {
	reg := &memoryRegistry{events: &memoryEvents{}}
	policy := config.CalendarPolicyFile{Visibility: map[string][]string{"parties": {"admin"}}}
	_, err := NewContainer(context.Background(), config.Config{}, reg, WithCalendarPolicy(policy))
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}
