package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/platform/auth"
	"github.com/workshop-planner/api/internal/platform/httpx"
	"github.com/workshop-planner/api/internal/repositories"
	"github.com/workshop-planner/api/internal/services"
)

const maxScheduleBodySize = 8 * 1024

// ScheduleHandlers exposes slot suggestions, capacity reports and schedule commits.
type ScheduleHandlers struct {
	authn      *auth.Authenticator
	schedule   services.ScheduleService
	writeRoles []string
	writeGuard []func(http.Handler) http.Handler
}

// ScheduleOption customises ScheduleHandlers.
type ScheduleOption func(*ScheduleHandlers)

// WithScheduleWriteRoles restricts accept and release to the given roles.
func WithScheduleWriteRoles(roles ...string) ScheduleOption {
	return func(h *ScheduleHandlers) {
		h.writeRoles = append([]string(nil), roles...)
	}
}

// WithScheduleWriteMiddlewares runs mw on accept and release after authentication.
func WithScheduleWriteMiddlewares(mw ...func(http.Handler) http.Handler) ScheduleOption {
	return func(h *ScheduleHandlers) {
		h.writeGuard = append(h.writeGuard, mw...)
	}
}

// NewScheduleHandlers constructs schedule handlers. Writes default to admins and managers.
func NewScheduleHandlers(authn *auth.Authenticator, schedule services.ScheduleService, opts ...ScheduleOption) *ScheduleHandlers {
	h := &ScheduleHandlers{
		authn:      authn,
		schedule:   schedule,
		writeRoles: []string{auth.RoleAdmin, auth.RoleManager},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /work-items and /capacity endpoints on the API root.
func (h *ScheduleHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(read chi.Router) {
		if h.authn != nil {
			read.Use(h.authn.RequireRoles())
		}
		read.Get("/work-items/{workItemID}/suggestions", h.suggestions)
		read.Get("/work-items/{workItemID}/capacity", h.capacityWindow)
		read.Get("/capacity", h.capacityOverview)
	})
	r.Group(func(write chi.Router) {
		if h.authn != nil {
			write.Use(h.authn.RequireRoles(h.writeRoles...))
		}
		if len(h.writeGuard) > 0 {
			write.Use(h.writeGuard...)
		}
		write.Post("/work-items/{workItemID}/schedule", h.acceptSchedule)
		write.Delete("/work-items/{workItemID}/schedule", h.releaseSchedule)
	})
}

func (h *ScheduleHandlers) suggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	result, err := h.schedule.Suggestions(ctx, chi.URLParam(r, "workItemID"))
	if err != nil {
		writeScheduleError(ctx, w, err)
		return
	}

	suggestions := make([]suggestionPayload, 0, len(result.Suggestions))
	for _, suggestion := range result.Suggestions {
		suggestions = append(suggestions, newSuggestionPayload(suggestion))
	}
	writeJSONResponse(w, http.StatusOK, suggestionsResponse{
		WorkItemID:  result.WorkItemID,
		Manual:      result.Manual,
		Capacity:    newCapacityPayload(result.Capacity),
		Suggestions: suggestions,
	})
}

func (h *ScheduleHandlers) capacityWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	start, err := parseDayParam(r.URL.Query().Get("start"))
	if err != nil || start.IsZero() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "start must be a YYYY-MM-DD date", http.StatusBadRequest))
		return
	}
	window, err := h.schedule.CapacityWindow(ctx, chi.URLParam(r, "workItemID"), start)
	if err != nil {
		writeScheduleError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newCapacityWindowPayload(window))
}

func (h *ScheduleHandlers) capacityOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	query := r.URL.Query()
	from, err := parseDayParam(query.Get("from"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be a YYYY-MM-DD date", http.StatusBadRequest))
		return
	}
	to, err := parseDayParam(query.Get("to"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be a YYYY-MM-DD date", http.StatusBadRequest))
		return
	}

	overview, err := h.schedule.CapacityOverview(ctx, from, to)
	if err != nil {
		writeScheduleError(ctx, w, err)
		return
	}

	days := make([]dailyLoadPayload, 0, len(overview.Days))
	for _, day := range overview.Days {
		days = append(days, dailyLoadPayload{
			Date:           formatDay(day.Date),
			CommittedHours: day.CommittedHours,
			TotalHours:     day.TotalHours,
			UtilizationPct: day.UtilizationPct,
		})
	}
	writeJSONResponse(w, http.StatusOK, capacityOverviewResponse{
		From:     formatDay(overview.From),
		To:       formatDay(overview.To),
		Capacity: newCapacityPayload(overview.Capacity),
		Days:     days,
	})
}

func (h *ScheduleHandlers) acceptSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}

	var req acceptScheduleRequest
	if err := decodeJSONBody(r, maxScheduleBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	start, err := parseDayParam(req.StartDate)
	if err != nil || start.IsZero() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "startDate must be a YYYY-MM-DD date", http.StatusBadRequest))
		return
	}
	cmd := services.AcceptScheduleCommand{
		WorkItemID: chi.URLParam(r, "workItemID"),
		StartDate:  start,
		ActorID:    auth.ActorID(r.Context()),
	}
	if strings.TrimSpace(req.EndDate) != "" {
		end, err := parseDayParam(req.EndDate)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "endDate must be a YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		cmd.EndDate = &end
	}

	item, err := h.schedule.AcceptSchedule(ctx, cmd)
	if err != nil {
		writeScheduleError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newWorkItemPayload(item))
}

func (h *ScheduleHandlers) releaseSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(ctx, w) {
		return
	}
	item, err := h.schedule.ReleaseSchedule(ctx, services.ReleaseScheduleCommand{
		WorkItemID: chi.URLParam(r, "workItemID"),
		ActorID:    auth.ActorID(r.Context()),
	})
	if err != nil {
		writeScheduleError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newWorkItemPayload(item))
}

func (h *ScheduleHandlers) available(ctx context.Context, w http.ResponseWriter) bool {
	if h == nil || h.schedule == nil {
		httpx.WriteError(ctx, w, httpx.NewError("schedule_service_unavailable", "schedule service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func writeScheduleError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrScheduleInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_schedule", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrScheduleNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("work_item_not_found", "work item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrScheduleConflict):
		httpx.WriteError(ctx, w, httpx.NewError("schedule_conflict", "work item changed; refresh and retry", http.StatusConflict))
	default:
		writeRepositoryError(ctx, w, err)
	}
}

func writeRepositoryError(ctx context.Context, w http.ResponseWriter, err error) {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("conflict", "resource changed; refresh and retry", http.StatusConflict))
			return
		case repoErr.IsUnavailable():
			httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "storage temporarily unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func parseDayParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.UTC)
}

type acceptScheduleRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
}

type capacityPayload struct {
	EmployeeCount int     `json:"employeeCount"`
	DailyHours    float64 `json:"dailyHours"`
	Fallback      bool    `json:"fallback"`
}

type capacityDayPayload struct {
	Date           string  `json:"date"`
	TotalHours     float64 `json:"totalHours"`
	CommittedHours float64 `json:"committedHours"`
	ProjectedHours float64 `json:"projectedHours"`
	FreeHours      float64 `json:"freeHours"`
	UtilizationPct int     `json:"utilizationPct"`
}

type capacityWindowPayload struct {
	StartDate       string               `json:"startDate"`
	EndDate         string               `json:"endDate"`
	WorkingDays     int                  `json:"workingDays"`
	DailyCapacity   float64              `json:"dailyCapacity"`
	EmployeeCount   int                  `json:"employeeCount"`
	PeakUtilization int                  `json:"peakUtilization"`
	AvgUtilization  int                  `json:"avgUtilization"`
	CanFit          bool                 `json:"canFit"`
	HasCapacity     bool                 `json:"hasCapacity"`
	Days            []capacityDayPayload `json:"days"`
}

type workItemRefPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type suggestionPayload struct {
	StartDate        string                 `json:"startDate"`
	EndDate          string                 `json:"endDate"`
	HasConflicts     bool                   `json:"hasConflicts"`
	ConflictingItems []workItemRefPayload   `json:"conflictingItems"`
	Score            int                    `json:"score"`
	Reason           string                 `json:"reason"`
	Capacity         *capacityWindowPayload `json:"capacity,omitempty"`
}

type suggestionsResponse struct {
	WorkItemID  string              `json:"workItemId"`
	Manual      bool                `json:"manual"`
	Capacity    capacityPayload     `json:"capacity"`
	Suggestions []suggestionPayload `json:"suggestions"`
}

type dailyLoadPayload struct {
	Date           string  `json:"date"`
	CommittedHours float64 `json:"committedHours"`
	TotalHours     float64 `json:"totalHours"`
	UtilizationPct int     `json:"utilizationPct"`
}

type capacityOverviewResponse struct {
	From     string             `json:"from"`
	To       string             `json:"to"`
	Capacity capacityPayload    `json:"capacity"`
	Days     []dailyLoadPayload `json:"days"`
}

type workItemPayload struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Status    string  `json:"status"`
	Hours     float64 `json:"hours"`
	TotalDays int     `json:"totalDays,omitempty"`
	Priority  int     `json:"priority"`
	StartDate string  `json:"startDate,omitempty"`
	EndDate   string  `json:"endDate,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

func newCapacityPayload(capacity domain.Capacity) capacityPayload {
	return capacityPayload{
		EmployeeCount: capacity.EmployeeCount,
		DailyHours:    capacity.DailyHours,
		Fallback:      capacity.Fallback,
	}
}

func newCapacityWindowPayload(window domain.CapacityWindow) capacityWindowPayload {
	days := make([]capacityDayPayload, 0, len(window.Days))
	for _, day := range window.Days {
		days = append(days, capacityDayPayload{
			Date:           formatDay(day.Date),
			TotalHours:     day.TotalHours,
			CommittedHours: day.CommittedHours,
			ProjectedHours: day.ProjectedHours,
			FreeHours:      day.FreeHours,
			UtilizationPct: day.UtilizationPct,
		})
	}
	return capacityWindowPayload{
		StartDate:       formatDay(window.StartDate),
		EndDate:         formatDay(window.EndDate),
		WorkingDays:     window.WorkingDays,
		DailyCapacity:   window.DailyCapacity,
		EmployeeCount:   window.EmployeeCount,
		PeakUtilization: window.PeakUtilization,
		AvgUtilization:  window.AvgUtilization,
		CanFit:          window.CanFit,
		HasCapacity:     window.HasCapacity,
		Days:            days,
	}
}

func newSuggestionPayload(suggestion domain.ScheduleSuggestion) suggestionPayload {
	conflicts := make([]workItemRefPayload, 0, len(suggestion.ConflictingItems))
	for _, ref := range suggestion.ConflictingItems {
		conflicts = append(conflicts, workItemRefPayload{ID: ref.ID, Title: ref.Title})
	}
	payload := suggestionPayload{
		StartDate:        formatDay(suggestion.StartDate),
		EndDate:          formatDay(suggestion.EndDate),
		HasConflicts:     suggestion.HasConflicts,
		ConflictingItems: conflicts,
		Score:            suggestion.Score,
		Reason:           suggestion.Reason,
	}
	if suggestion.Capacity != nil {
		window := newCapacityWindowPayload(*suggestion.Capacity)
		payload.Capacity = &window
	}
	return payload
}

func newWorkItemPayload(item domain.WorkItem) workItemPayload {
	payload := workItemPayload{
		ID:        item.ID,
		Title:     item.Title,
		Status:    string(item.Status),
		Hours:     item.Hours,
		TotalDays: item.TotalDays,
		Priority:  item.Priority,
		UpdatedAt: formatTime(item.UpdatedAt),
	}
	if item.StartDate != nil {
		payload.StartDate = formatDay(*item.StartDate)
	}
	if item.EndDate != nil {
		payload.EndDate = formatDay(*item.EndDate)
	}
	return payload
}
