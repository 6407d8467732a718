package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/scheduling"
)

// Source names used when registering the built-in adapters.
const (
	SourceProduction       = "production"
	SourceVehicleArrival   = "vehicle-arrival"
	SourcePurchaseDelivery = "purchase-delivery"
	SourceQuoteFollowUp    = "quote-follow-up"
	SourceManual           = "manual"
)

// DefaultQuoteFollowUpDays applies when a quote carries no follow-up interval.
const DefaultQuoteFollowUpDays = 7

// WorkItemLister lists work items in any of the given statuses.
type WorkItemLister interface {
	ListByStatus(ctx context.Context, statuses ...domain.WorkItemStatus) ([]domain.WorkItem, error)
}

// PurchaseOrderLister lists purchase orders in any of the given statuses.
type PurchaseOrderLister interface {
	ListByStatus(ctx context.Context, statuses ...domain.PurchaseOrderStatus) ([]domain.PurchaseOrder, error)
}

// QuoteLister lists quotes in any of the given statuses.
type QuoteLister interface {
	ListByStatus(ctx context.Context, statuses ...domain.QuoteStatus) ([]domain.Quote, error)
}

// ManualEventLister lists persisted manual calendar events.
type ManualEventLister interface {
	List(ctx context.Context) ([]domain.CalendarEvent, error)
}

var errNilLister = errors.New("calendar source: lister is not configured")

// ProductionSource emits one span event per dated work item on the production plan.
type ProductionSource struct {
	Items WorkItemLister
}

func (s ProductionSource) Fetch(ctx context.Context) ([]domain.WorkItem, error) {
	if s.Items == nil {
		return nil, errNilLister
	}
	return s.Items.ListByStatus(ctx, domain.WorkItemStatusScheduled, domain.WorkItemStatusInProgress, domain.WorkItemStatusCompleted)
}

func (ProductionSource) Transform(item domain.WorkItem) (domain.CalendarEvent, bool) {
	switch item.Status {
	case domain.WorkItemStatusScheduled, domain.WorkItemStatusInProgress, domain.WorkItemStatusCompleted:
	default:
		return domain.CalendarEvent{}, false
	}
	if !item.HasDates() || strings.TrimSpace(item.ID) == "" {
		return domain.CalendarEvent{}, false
	}
	start := scheduling.Normalize(*item.StartDate)
	end := scheduling.Normalize(*item.EndDate)
	if end.Before(start) {
		return domain.CalendarEvent{}, false
	}
	return domain.CalendarEvent{
		ID:        domain.ProductionSpanIDPrefix + item.ID,
		Title:     workItemTitle(item),
		Date:      scheduling.DayKey(start),
		EndDate:   scheduling.DayKey(end),
		Category:  domain.EventCategoryProduction,
		EventType: domain.EventTypeProductionSpan,
		SourceID:  item.ID,
		Metadata: map[string]any{
			"status":   string(item.Status),
			"hours":    item.Hours,
			"priority": item.Priority,
		},
	}, true
}

// VehicleArrivalSource emits the customer vehicle drop-off for open work items.
type VehicleArrivalSource struct {
	Items WorkItemLister
}

func (s VehicleArrivalSource) Fetch(ctx context.Context) ([]domain.WorkItem, error) {
	if s.Items == nil {
		return nil, errNilLister
	}
	return s.Items.ListByStatus(ctx,
		domain.WorkItemStatusWaiting,
		domain.WorkItemStatusScheduled,
		domain.WorkItemStatusInProgress,
		domain.WorkItemStatusOnHold,
	)
}

func (VehicleArrivalSource) Transform(item domain.WorkItem) (domain.CalendarEvent, bool) {
	if item.VehicleArrival == nil || item.VehicleArrival.IsZero() || strings.TrimSpace(item.ID) == "" {
		return domain.CalendarEvent{}, false
	}
	if item.Status == domain.WorkItemStatusCompleted {
		return domain.CalendarEvent{}, false
	}
	arrival := *item.VehicleArrival
	event := domain.CalendarEvent{
		ID:        domain.VehicleArrivalIDPrefix + item.ID,
		Title:     "Vehicle arrival: " + workItemTitle(item),
		Date:      scheduling.DayKey(arrival),
		Category:  domain.EventCategoryClientVehicle,
		EventType: domain.EventTypeVehicleArrival,
		SourceID:  item.ID,
		Metadata:  map[string]any{"status": string(item.Status)},
	}
	if arrival.Hour() != 0 || arrival.Minute() != 0 {
		event.Time = arrival.Format("15:04")
	}
	return event, true
}

// PurchaseDeliverySource emits the expected delivery date of open supplier orders.
type PurchaseDeliverySource struct {
	Orders PurchaseOrderLister
}

func (s PurchaseDeliverySource) Fetch(ctx context.Context) ([]domain.PurchaseOrder, error) {
	if s.Orders == nil {
		return nil, errNilLister
	}
	return s.Orders.ListByStatus(ctx, domain.PurchaseOrderStatusOrdered)
}

func (PurchaseDeliverySource) Transform(order domain.PurchaseOrder) (domain.CalendarEvent, bool) {
	if order.Status != domain.PurchaseOrderStatusOrdered || strings.TrimSpace(order.ID) == "" {
		return domain.CalendarEvent{}, false
	}
	eta, err := scheduling.ParseDay(order.ExpectedDelivery)
	if err != nil {
		return domain.CalendarEvent{}, false
	}
	title := "Delivery: " + firstNonEmpty(order.Supplier, "supplier")
	if ref := strings.TrimSpace(order.Reference); ref != "" {
		title = fmt.Sprintf("%s (%s)", title, ref)
	}
	metadata := map[string]any{"supplier": order.Supplier}
	if order.WorkItemID != "" {
		metadata["workItemId"] = order.WorkItemID
	}
	return domain.CalendarEvent{
		ID:        domain.PurchaseDeliveryIDPrefix + order.ID,
		Title:     title,
		Date:      scheduling.DayKey(eta),
		Category:  domain.EventCategoryPurchasing,
		EventType: domain.EventTypeDeliveryETA,
		SourceID:  order.ID,
		Metadata:  metadata,
	}, true
}

// QuoteFollowUpSource emits a reminder for sent quotes whose follow-up date has not passed.
type QuoteFollowUpSource struct {
	Quotes          QuoteLister
	Clock           func() time.Time
	DefaultInterval int
}

func (s QuoteFollowUpSource) Fetch(ctx context.Context) ([]domain.Quote, error) {
	if s.Quotes == nil {
		return nil, errNilLister
	}
	return s.Quotes.ListByStatus(ctx, domain.QuoteStatusSent)
}

func (s QuoteFollowUpSource) Transform(quote domain.Quote) (domain.CalendarEvent, bool) {
	if quote.Status != domain.QuoteStatusSent || quote.SentAt.IsZero() || strings.TrimSpace(quote.ID) == "" {
		return domain.CalendarEvent{}, false
	}
	interval := quote.FollowUpDays
	if interval <= 0 {
		interval = s.DefaultInterval
	}
	if interval <= 0 {
		interval = DefaultQuoteFollowUpDays
	}
	due := scheduling.Normalize(quote.SentAt).AddDate(0, 0, interval)
	if due.Before(scheduling.Normalize(s.now())) {
		return domain.CalendarEvent{}, false
	}
	title := "Follow up quote: " + firstNonEmpty(quote.CustomerName, quote.ID)
	if label := strings.TrimSpace(quote.VehicleLabel); label != "" {
		title = fmt.Sprintf("%s (%s)", title, label)
	}
	return domain.CalendarEvent{
		ID:        domain.QuoteFollowUpIDPrefix + quote.ID,
		Title:     title,
		Date:      scheduling.DayKey(due),
		Category:  domain.EventCategoryQuoting,
		EventType: domain.EventTypeQuoteFollowUp,
		SourceID:  quote.ID,
		Metadata:  map[string]any{"sentAt": scheduling.DayKey(quote.SentAt)},
	}, true
}

func (s QuoteFollowUpSource) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// ManualSource passes persisted manual events through unchanged.
type ManualSource struct {
	Events ManualEventLister
}

func (s ManualSource) Fetch(ctx context.Context) ([]domain.CalendarEvent, error) {
	if s.Events == nil {
		return nil, errNilLister
	}
	return s.Events.List(ctx)
}

func (ManualSource) Transform(event domain.CalendarEvent) (domain.CalendarEvent, bool) {
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Date) == "" {
		return domain.CalendarEvent{}, false
	}
	event.EventType = domain.EventTypeManual
	if event.Category == "" {
		event.Category = domain.EventCategoryGeneral
	}
	if event.EndDate != "" && event.EndDate < event.Date {
		event.EndDate = ""
	}
	return event, true
}

// Sources bundles the collaborators behind the built-in adapters.
type Sources struct {
	WorkItems           WorkItemLister
	PurchaseOrders      PurchaseOrderLister
	Quotes              QuoteLister
	ManualEvents        ManualEventLister
	Clock               func() time.Time
	QuoteFollowUpDays   int
	SkipVehicleArrivals bool
}

// NewDefaultRegistry registers every built-in adapter whose collaborator is configured.
func NewDefaultRegistry(src Sources) (*Registry, error) {
	registry := &Registry{}
	if src.WorkItems != nil {
		if err := Register[domain.WorkItem](registry, SourceProduction, ProductionSource{Items: src.WorkItems}); err != nil {
			return nil, err
		}
		if !src.SkipVehicleArrivals {
			if err := Register[domain.WorkItem](registry, SourceVehicleArrival, VehicleArrivalSource{Items: src.WorkItems}); err != nil {
				return nil, err
			}
		}
	}
	if src.PurchaseOrders != nil {
		if err := Register[domain.PurchaseOrder](registry, SourcePurchaseDelivery, PurchaseDeliverySource{Orders: src.PurchaseOrders}); err != nil {
			return nil, err
		}
	}
	if src.Quotes != nil {
		source := QuoteFollowUpSource{Quotes: src.Quotes, Clock: src.Clock, DefaultInterval: src.QuoteFollowUpDays}
		if err := Register[domain.Quote](registry, SourceQuoteFollowUp, source); err != nil {
			return nil, err
		}
	}
	if src.ManualEvents != nil {
		if err := Register[domain.CalendarEvent](registry, SourceManual, ManualSource{Events: src.ManualEvents}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func workItemTitle(item domain.WorkItem) string {
	return firstNonEmpty(item.Title, "Work item "+item.ID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
