package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/workshop-planner/api/internal/calendar"
	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/scheduling"
)

// fixtureFile is the YAML snapshot of a workshop the planner commands operate on.
type fixtureFile struct {
	Today          string            `yaml:"today"`
	Policy         fixturePolicy     `yaml:"policy"`
	Roster         []fixtureEmployee `yaml:"roster"`
	WorkItems      []fixtureWorkItem `yaml:"workItems"`
	PurchaseOrders []fixtureOrder    `yaml:"purchaseOrders"`
	Quotes         []fixtureQuote    `yaml:"quotes"`
	Events         []fixtureEvent    `yaml:"events"`
}

type fixturePolicy struct {
	ShopFloorRoles      []string            `yaml:"shopFloorRoles"`
	WeeklyCandidates    int                 `yaml:"weeklyCandidates"`
	MaterialsMarginDays *int                `yaml:"materialsMarginDays"`
	FallbackWorkers     int                 `yaml:"fallbackWorkers"`
	FallbackDailyHours  float64             `yaml:"fallbackDailyHours"`
	QuoteFollowUpDays   int                 `yaml:"quoteFollowUpDays"`
	Visibility          map[string][]string `yaml:"visibility"`
}

type fixtureEmployee struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Role        string  `yaml:"role"`
	Active      *bool   `yaml:"active"`
	WeeklyHours float64 `yaml:"weeklyHours"`
}

type fixtureWorkItem struct {
	ID                string  `yaml:"id"`
	Title             string  `yaml:"title"`
	Hours             float64 `yaml:"hours"`
	TotalDays         int     `yaml:"totalDays"`
	Status            string  `yaml:"status"`
	Priority          int     `yaml:"priority"`
	MaterialsRequired bool    `yaml:"materialsRequired"`
	MaterialsReady    bool    `yaml:"materialsReady"`
	DesignRequired    bool    `yaml:"designRequired"`
	DesignReady       bool    `yaml:"designReady"`
	StartDate         string  `yaml:"startDate"`
	EndDate           string  `yaml:"endDate"`
	VehicleArrival    string  `yaml:"vehicleArrival"`
}

type fixtureOrder struct {
	ID               string `yaml:"id"`
	Supplier         string `yaml:"supplier"`
	Reference        string `yaml:"reference"`
	Status           string `yaml:"status"`
	ExpectedDelivery string `yaml:"expectedDelivery"`
	WorkItemID       string `yaml:"workItemId"`
}

type fixtureQuote struct {
	ID           string `yaml:"id"`
	CustomerName string `yaml:"customerName"`
	VehicleLabel string `yaml:"vehicleLabel"`
	Status       string `yaml:"status"`
	SentAt       string `yaml:"sentAt"`
	FollowUpDays int    `yaml:"followUpDays"`
}

type fixtureEvent struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Date         string   `yaml:"date"`
	EndDate      string   `yaml:"endDate"`
	Time         string   `yaml:"time"`
	Category     string   `yaml:"category"`
	VisibleRoles []string `yaml:"visibleRoles"`
	CreatedBy    string   `yaml:"createdBy"`
}

// workshop is the decoded fixture in domain types.
type workshop struct {
	Today            time.Time
	CapacityPolicy   scheduling.CapacityPolicy
	SuggestionPolicy scheduling.SuggestionPolicy
	Visibility       calendar.VisibilityPolicy
	QuoteFollowUp    int
	Roster           []domain.RosterEntry
	WorkItems        workItemList
	PurchaseOrders   purchaseOrderList
	Quotes           quoteList
	Events           manualEventList
}

var errFixtureRequired = errors.New("a fixture file is required (--fixture)")

func loadWorkshop(path string, today string) (workshop, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return workshop{}, errFixtureRequired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return workshop{}, fmt.Errorf("read fixture: %w", err)
	}
	return parseWorkshop(data, today)
}

// parseWorkshop decodes the fixture. A non-empty today overrides the fixture's own date;
// when neither is set the current UTC day is used.
func parseWorkshop(data []byte, today string) (workshop, error) {
	var file fixtureFile
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return workshop{}, fmt.Errorf("decode fixture: %w", err)
	}

	ws := workshop{
		CapacityPolicy:   scheduling.DefaultCapacityPolicy(),
		SuggestionPolicy: scheduling.DefaultSuggestionPolicy(),
		QuoteFollowUp:    file.Policy.QuoteFollowUpDays,
	}

	switch day := firstNonEmpty(today, file.Today); day {
	case "":
		ws.Today = scheduling.Normalize(time.Now())
	default:
		parsed, err := scheduling.ParseDay(day)
		if err != nil {
			return workshop{}, fmt.Errorf("today: %w", err)
		}
		ws.Today = parsed
	}

	if len(file.Policy.ShopFloorRoles) > 0 {
		ws.CapacityPolicy.ShopFloorRoles = file.Policy.ShopFloorRoles
	}
	if file.Policy.FallbackWorkers > 0 {
		ws.CapacityPolicy.FallbackEmployees = file.Policy.FallbackWorkers
	}
	if file.Policy.FallbackDailyHours > 0 {
		ws.CapacityPolicy.FallbackDailyHours = file.Policy.FallbackDailyHours
	}
	if file.Policy.WeeklyCandidates > 0 {
		ws.SuggestionPolicy.WeeklyCandidates = file.Policy.WeeklyCandidates
	}
	if file.Policy.MaterialsMarginDays != nil {
		ws.SuggestionPolicy.MaterialsSafetyMarginDays = *file.Policy.MaterialsMarginDays
	}
	visibility, err := calendar.NewVisibilityPolicy(file.Policy.Visibility)
	if err != nil {
		return workshop{}, err
	}
	ws.Visibility = visibility

	for _, employee := range file.Roster {
		active := employee.Active == nil || *employee.Active
		ws.Roster = append(ws.Roster, domain.RosterEntry{
			ID:          employee.ID,
			Name:        employee.Name,
			Role:        employee.Role,
			Active:      active,
			WeeklyHours: employee.WeeklyHours,
		})
	}

	for _, raw := range file.WorkItems {
		item, err := raw.toDomain()
		if err != nil {
			return workshop{}, fmt.Errorf("work item %s: %w", raw.ID, err)
		}
		ws.WorkItems = append(ws.WorkItems, item)
	}
	for _, raw := range file.PurchaseOrders {
		ws.PurchaseOrders = append(ws.PurchaseOrders, domain.PurchaseOrder{
			ID:               raw.ID,
			Supplier:         raw.Supplier,
			Reference:        raw.Reference,
			Status:           domain.PurchaseOrderStatus(strings.ToLower(raw.Status)),
			ExpectedDelivery: raw.ExpectedDelivery,
			WorkItemID:       raw.WorkItemID,
		})
	}
	for _, raw := range file.Quotes {
		quote := domain.Quote{
			ID:           raw.ID,
			CustomerName: raw.CustomerName,
			VehicleLabel: raw.VehicleLabel,
			Status:       domain.QuoteStatus(strings.ToLower(raw.Status)),
			FollowUpDays: raw.FollowUpDays,
		}
		if raw.SentAt != "" {
			sent, err := parseInstant(raw.SentAt)
			if err != nil {
				return workshop{}, fmt.Errorf("quote %s: %w", raw.ID, err)
			}
			quote.SentAt = sent
		}
		ws.Quotes = append(ws.Quotes, quote)
	}
	for _, raw := range file.Events {
		ws.Events = append(ws.Events, domain.CalendarEvent{
			ID:           raw.ID,
			Title:        raw.Title,
			Description:  raw.Description,
			Date:         raw.Date,
			EndDate:      raw.EndDate,
			Time:         raw.Time,
			Category:     domain.EventCategory(strings.ToLower(raw.Category)),
			EventType:    domain.EventTypeManual,
			VisibleRoles: raw.VisibleRoles,
			CreatedBy:    raw.CreatedBy,
		})
	}
	return ws, nil
}

func (raw fixtureWorkItem) toDomain() (domain.WorkItem, error) {
	status := domain.WorkItemStatus(strings.ToLower(firstNonEmpty(raw.Status, string(domain.WorkItemStatusWaiting))))
	if !status.Valid() {
		return domain.WorkItem{}, fmt.Errorf("unknown status %q", raw.Status)
	}
	item := domain.WorkItem{
		ID:                raw.ID,
		Title:             raw.Title,
		Hours:             raw.Hours,
		TotalDays:         raw.TotalDays,
		Status:            status,
		Priority:          raw.Priority,
		MaterialsRequired: raw.MaterialsRequired,
		MaterialsReady:    raw.MaterialsReady,
		DesignRequired:    raw.DesignRequired,
		DesignReady:       raw.DesignReady,
	}
	var err error
	if item.StartDate, err = optionalDay(raw.StartDate); err != nil {
		return domain.WorkItem{}, fmt.Errorf("startDate: %w", err)
	}
	if item.EndDate, err = optionalDay(raw.EndDate); err != nil {
		return domain.WorkItem{}, fmt.Errorf("endDate: %w", err)
	}
	if item.VehicleArrival, err = optionalDay(raw.VehicleArrival); err != nil {
		return domain.WorkItem{}, fmt.Errorf("vehicleArrival: %w", err)
	}
	return item, nil
}

// capacity returns the roster-derived daily pool.
func (ws workshop) capacity() domain.Capacity {
	return scheduling.DailyCapacity(ws.Roster, ws.CapacityPolicy)
}

// committed lists items that occupy shop-floor capacity.
func (ws workshop) committed() []domain.WorkItem {
	out := make([]domain.WorkItem, 0, len(ws.WorkItems))
	for _, item := range ws.WorkItems {
		if item.Status.Committed() {
			out = append(out, item)
		}
	}
	return out
}

func (ws workshop) workItem(id string) (domain.WorkItem, bool) {
	for _, item := range ws.WorkItems {
		if item.ID == id {
			return item, true
		}
	}
	return domain.WorkItem{}, false
}

type workItemList []domain.WorkItem

func (l workItemList) ListByStatus(_ context.Context, statuses ...domain.WorkItemStatus) ([]domain.WorkItem, error) {
	return filterByStatus(l, statuses, func(item domain.WorkItem) domain.WorkItemStatus { return item.Status }), nil
}

type purchaseOrderList []domain.PurchaseOrder

func (l purchaseOrderList) ListByStatus(_ context.Context, statuses ...domain.PurchaseOrderStatus) ([]domain.PurchaseOrder, error) {
	return filterByStatus(l, statuses, func(order domain.PurchaseOrder) domain.PurchaseOrderStatus { return order.Status }), nil
}

type quoteList []domain.Quote

func (l quoteList) ListByStatus(_ context.Context, statuses ...domain.QuoteStatus) ([]domain.Quote, error) {
	return filterByStatus(l, statuses, func(quote domain.Quote) domain.QuoteStatus { return quote.Status }), nil
}

type manualEventList []domain.CalendarEvent

func (l manualEventList) List(context.Context) ([]domain.CalendarEvent, error) {
	return append([]domain.CalendarEvent(nil), l...), nil
}

func filterByStatus[T any, S comparable](values []T, statuses []S, status func(T) S) []T {
	if len(statuses) == 0 {
		return append([]T(nil), values...)
	}
	out := make([]T, 0, len(values))
	for _, value := range values {
		for _, want := range statuses {
			if status(value) == want {
				out = append(out, value)
				break
			}
		}
	}
	return out
}

func optionalDay(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	day, err := scheduling.ParseDay(value)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// parseInstant accepts RFC 3339 timestamps or bare days.
func parseInstant(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return scheduling.ParseDay(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
