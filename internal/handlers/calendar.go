package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/platform/auth"
	"github.com/workshop-planner/api/internal/platform/httpx"
	"github.com/workshop-planner/api/internal/services"
)

const maxCalendarBodySize = 16 * 1024

// CalendarHandlers exposes the merged role-filtered calendar and manual event editing.
type CalendarHandlers struct {
	authn      *auth.Authenticator
	calendar   services.CalendarService
	writeGuard []func(http.Handler) http.Handler
}

// CalendarOption customises CalendarHandlers.
type CalendarOption func(*CalendarHandlers)

// WithCalendarWriteMiddlewares runs mw on manual event writes after authentication.
func WithCalendarWriteMiddlewares(mw ...func(http.Handler) http.Handler) CalendarOption {
	return func(h *CalendarHandlers) {
		h.writeGuard = append(h.writeGuard, mw...)
	}
}

// NewCalendarHandlers constructs calendar handlers.
func NewCalendarHandlers(authn *auth.Authenticator, calendar services.CalendarService, opts ...CalendarOption) *CalendarHandlers {
	h := &CalendarHandlers{
		authn:    authn,
		calendar: calendar,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /calendar endpoints.
func (h *CalendarHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireRoles())
	}
	r.Get("/events", h.listEvents)
	r.Group(func(write chi.Router) {
		if len(h.writeGuard) > 0 {
			write.Use(h.writeGuard...)
		}
		write.Post("/events", h.createEvent)
		write.Put("/events/{eventID}", h.updateEvent)
		write.Delete("/events/{eventID}", h.deleteEvent)
	})
}

func (h *CalendarHandlers) listEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	query := r.URL.Query()
	filter := services.CalendarFilter{
		Roles: h.callerRoles(r),
		Day:   strings.TrimSpace(query.Get("day")),
		From:  strings.TrimSpace(query.Get("from")),
		To:    strings.TrimSpace(query.Get("to")),
	}
	for _, category := range splitCSV(query.Get("category")) {
		filter.Categories = append(filter.Categories, domain.EventCategory(strings.ToLower(category)))
	}

	view, err := h.calendar.ListEvents(ctx, filter)
	if err != nil {
		writeCalendarError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCalendarViewPayload(view))
}

func (h *CalendarHandlers) createEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	var req calendarEventRequest
	if err := decodeJSONBody(r, maxCalendarBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	view, err := h.calendar.CreateEvent(ctx, h.eventCommand(r, "", req))
	if err != nil {
		writeCalendarError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newCalendarViewPayload(view))
}

func (h *CalendarHandlers) updateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	var req calendarEventRequest
	if err := decodeJSONBody(r, maxCalendarBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	view, err := h.calendar.UpdateEvent(ctx, h.eventCommand(r, chi.URLParam(r, "eventID"), req))
	if err != nil {
		writeCalendarError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCalendarViewPayload(view))
}

func (h *CalendarHandlers) deleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	view, err := h.calendar.DeleteEvent(ctx, services.DeleteCalendarEventCommand{
		EventID:    chi.URLParam(r, "eventID"),
		ActorID:    auth.ActorID(r.Context()),
		ActorRoles: h.callerRoles(r),
	})
	if err != nil {
		writeCalendarError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCalendarViewPayload(view))
}

func (h *CalendarHandlers) eventCommand(r *http.Request, eventID string, req calendarEventRequest) services.CalendarEventCommand {
	cmd := services.CalendarEventCommand{
		EventID:     eventID,
		Title:       req.Title,
		Description: req.Description,
		Date:        strings.TrimSpace(req.Date),
		EndDate:     strings.TrimSpace(req.EndDate),
		Time:        strings.TrimSpace(req.Time),
		Category:    domain.EventCategory(strings.ToLower(strings.TrimSpace(req.Category))),
		Labels:      req.Labels,
		ActorID:     auth.ActorID(r.Context()),
		ActorRoles:  h.callerRoles(r),
	}
	if req.VisibleRoles != nil {
		cmd.VisibleRoles = append([]string{}, (*req.VisibleRoles)...)
	}
	return cmd
}

// callerRoles reads roles from the verified identity. Without an authenticator the
// roles query parameter stands in so the API can run against local fixtures.
func (h *CalendarHandlers) callerRoles(r *http.Request) []string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.RoleList()
	}
	if h.authn == nil {
		return splitCSV(r.URL.Query().Get("roles"))
	}
	return nil
}

func (h *CalendarHandlers) available(ctx context.Context, w http.ResponseWriter) bool {
	if h == nil || h.calendar == nil {
		httpx.WriteError(ctx, w, httpx.NewError("calendar_service_unavailable", "calendar service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func writeCalendarError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *services.CalendarValidationError
	switch {
	case errors.As(err, &validation):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_event", validation.Message, http.StatusBadRequest).
			WithDetails(map[string]any{"field": validation.Field}))
	case errors.Is(err, services.ErrCalendarInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCalendarForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to change this event", http.StatusForbidden))
	case errors.Is(err, services.ErrCalendarNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("event_not_found", "calendar event not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCalendarConflict):
		httpx.WriteError(ctx, w, httpx.NewError("event_conflict", "calendar event already exists", http.StatusConflict))
	default:
		writeRepositoryError(ctx, w, err)
	}
}

type calendarEventRequest struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Date         string            `json:"date"`
	EndDate      string            `json:"endDate"`
	Time         string            `json:"time"`
	Category     string            `json:"category"`
	VisibleRoles *[]string         `json:"visibleRoles"`
	Labels       map[string]string `json:"labels"`
}

type calendarEventPayload struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Date         string         `json:"date"`
	EndDate      string         `json:"endDate,omitempty"`
	Time         string         `json:"time,omitempty"`
	Category     string         `json:"category"`
	EventType    string         `json:"eventType"`
	SourceID     string         `json:"sourceId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	VisibleRoles []string       `json:"visibleRoles"`
	CreatedBy    string         `json:"createdBy,omitempty"`
	CreatedAt    string         `json:"createdAt,omitempty"`
	UpdatedAt    string         `json:"updatedAt,omitempty"`
}

type calendarViewPayload struct {
	Events         []calendarEventPayload `json:"events"`
	PartialSources []string               `json:"partialSources"`
}

func newCalendarViewPayload(view services.CalendarView) calendarViewPayload {
	events := make([]calendarEventPayload, 0, len(view.Events))
	for _, event := range view.Events {
		events = append(events, calendarEventPayload{
			ID:           event.ID,
			Title:        event.Title,
			Description:  event.Description,
			Date:         event.Date,
			EndDate:      event.EndDate,
			Time:         event.Time,
			Category:     string(event.Category),
			EventType:    event.EventType,
			SourceID:     event.SourceID,
			Metadata:     event.Metadata,
			VisibleRoles: append([]string{}, event.VisibleRoles...),
			CreatedBy:    event.CreatedBy,
			CreatedAt:    formatTime(event.CreatedAt),
			UpdatedAt:    formatTime(event.UpdatedAt),
		})
	}
	partial := view.PartialSources
	if partial == nil {
		partial = []string{}
	}
	return calendarViewPayload{Events: events, PartialSources: partial}
}
