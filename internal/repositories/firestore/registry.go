package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/repositories"
)

// Registry wires every Firestore repository over a shared provider.
type Registry struct {
	provider       *pfirestore.Provider
	workItems      *WorkItemRepository
	roster         *RosterRepository
	purchaseOrders *PurchaseOrderRepository
	quotes         *QuoteRepository
	calendarEvents *CalendarEventRepository
	health         repositories.HealthRepository
}

// NewRegistry constructs the repositories. health may be nil when readiness checks are not wired.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry requires firestore provider")
	}
	reg := &Registry{provider: provider, health: health}
	var err error
	if reg.workItems, err = NewWorkItemRepository(provider); err != nil {
		return nil, err
	}
	if reg.roster, err = NewRosterRepository(provider); err != nil {
		return nil, err
	}
	if reg.purchaseOrders, err = NewPurchaseOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.quotes, err = NewQuoteRepository(provider); err != nil {
		return nil, err
	}
	if reg.calendarEvents, err = NewCalendarEventRepository(provider); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) WorkItems() repositories.WorkItemRepository { return r.workItems }

func (r *Registry) Roster() repositories.RosterRepository { return r.roster }

func (r *Registry) PurchaseOrders() repositories.PurchaseOrderRepository { return r.purchaseOrders }

func (r *Registry) Quotes() repositories.QuoteRepository { return r.quotes }

func (r *Registry) CalendarEvents() repositories.CalendarEventRepository { return r.calendarEvents }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

var _ repositories.Registry = (*Registry)(nil)
