package repositories

import (
	"context"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	WorkItems() WorkItemRepository
	Roster() RosterRepository
	PurchaseOrders() PurchaseOrderRepository
	Quotes() QuoteRepository
	CalendarEvents() CalendarEventRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// WorkItemRepository reads the production backlog and persists accepted schedules.
type WorkItemRepository interface {
	// FindByID returns a RepositoryError with IsNotFound when the item is absent.
	FindByID(ctx context.Context, id string) (domain.WorkItem, error)
	// ListByStatus returns items in any of the statuses. No statuses lists everything.
	ListByStatus(ctx context.Context, statuses ...domain.WorkItemStatus) ([]domain.WorkItem, error)
	// UpdateSchedule writes dates and status atomically. When ExpectedStatuses is set and the stored
	// status is not among them a WorkItemError with WorkItemErrorStatusChanged is returned.
	UpdateSchedule(ctx context.Context, update WorkItemScheduleUpdate) (domain.WorkItem, error)
}

// WorkItemScheduleUpdate describes a schedule write. Nil dates clear the stored values.
type WorkItemScheduleUpdate struct {
	ID               string
	Status           domain.WorkItemStatus
	StartDate        *time.Time
	EndDate          *time.Time
	ExpectedStatuses []domain.WorkItemStatus
	UpdatedAt        time.Time
}

// RosterRepository lists the workforce used for capacity computation.
type RosterRepository interface {
	ListActive(ctx context.Context) ([]domain.RosterEntry, error)
}

// PurchaseOrderRepository lists supplier orders.
type PurchaseOrderRepository interface {
	ListByStatus(ctx context.Context, statuses ...domain.PurchaseOrderStatus) ([]domain.PurchaseOrder, error)
}

// QuoteRepository lists customer quotes.
type QuoteRepository interface {
	ListByStatus(ctx context.Context, statuses ...domain.QuoteStatus) ([]domain.Quote, error)
}

// CalendarEventRepository persists manual calendar events.
type CalendarEventRepository interface {
	List(ctx context.Context) ([]domain.CalendarEvent, error)
	Get(ctx context.Context, id string) (domain.CalendarEvent, error)
	// Insert fails with IsConflict when the id already exists.
	Insert(ctx context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error)
	// Update fails with IsNotFound when the id does not exist.
	Update(ctx context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error)
	Delete(ctx context.Context, id string) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
