package domain

import "time"

// EventCategory groups calendar events by the business area that produced them.
type EventCategory string

const (
	// EventCategoryProduction covers shop-floor work spans.
	EventCategoryProduction EventCategory = "production"
	// EventCategoryClientVehicle covers customer vehicle drop-offs and pick-ups.
	EventCategoryClientVehicle EventCategory = "client-vehicle"
	// EventCategoryPurchasing covers supplier deliveries.
	EventCategoryPurchasing EventCategory = "purchasing"
	// EventCategoryQuoting covers quote follow-ups.
	EventCategoryQuoting EventCategory = "quoting"
	// EventCategoryGeneral covers everything else.
	EventCategoryGeneral EventCategory = "general"
)

// EventCategories lists all known categories in display order.
var EventCategories = []EventCategory{
	EventCategoryProduction,
	EventCategoryClientVehicle,
	EventCategoryPurchasing,
	EventCategoryQuoting,
	EventCategoryGeneral,
}

// Valid reports whether the category is known.
func (c EventCategory) Valid() bool {
	for _, known := range EventCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Event types emitted by the derived calendar sources.
const (
	EventTypeProductionSpan  = "production_span"
	EventTypeVehicleArrival  = "vehicle_arrival"
	EventTypeDeliveryETA     = "delivery_eta"
	EventTypeQuoteFollowUp   = "quote_follow_up"
	EventTypeManual          = "manual"
	ManualEventIDPrefix      = "manual-"
	ProductionSpanIDPrefix   = "prod-span-"
	VehicleArrivalIDPrefix   = "vehicle-arrival-"
	PurchaseDeliveryIDPrefix = "purchase-delivery-"
	QuoteFollowUpIDPrefix    = "quote-followup-"
)

// CalendarEvent is the normalised record rendered on the unified calendar.
// Date and EndDate use the canonical YYYY-MM-DD form; Time is optional HH:MM.
type CalendarEvent struct {
	ID           string
	Title        string
	Description  string
	Date         string
	EndDate      string
	Time         string
	Category     EventCategory
	EventType    string
	SourceID     string
	Metadata     map[string]any
	VisibleRoles []string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Manual reports whether the event was created by a user rather than derived from a source record.
func (e CalendarEvent) Manual() bool {
	return e.EventType == EventTypeManual
}

// PurchaseOrderStatus enumerates supplier order states.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "draft"
	PurchaseOrderStatusOrdered   PurchaseOrderStatus = "ordered"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "received"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "cancelled"
)

// PurchaseOrder is a supplier order whose expected delivery shows on the calendar.
type PurchaseOrder struct {
	ID               string
	Supplier         string
	Reference        string
	Status           PurchaseOrderStatus
	ExpectedDelivery string
	WorkItemID       string
}

// QuoteStatus enumerates customer quote states.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusDeclined QuoteStatus = "declined"
)

// Quote is a customer quote that may need a follow-up reminder.
type Quote struct {
	ID           string
	CustomerName string
	VehicleLabel string
	Status       QuoteStatus
	SentAt       time.Time
	FollowUpDays int
}
