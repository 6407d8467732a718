package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/platform/auth"
	"github.com/workshop-planner/api/internal/platform/idempotency"
	"github.com/workshop-planner/api/internal/services"
)

type stubCalendarService struct {
	view services.CalendarView
	err  error

	lastFilter services.CalendarFilter
	lastCmd    services.CalendarEventCommand
	lastDelete services.DeleteCalendarEventCommand
}

func (s *stubCalendarService) ListEvents(_ context.Context, filter services.CalendarFilter) (services.CalendarView, error) {
	s.lastFilter = filter
	return s.view, s.err
}

func (s *stubCalendarService) CreateEvent(_ context.Context, cmd services.CalendarEventCommand) (services.CalendarView, error) {
	s.lastCmd = cmd
	return s.view, s.err
}

func (s *stubCalendarService) UpdateEvent(_ context.Context, cmd services.CalendarEventCommand) (services.CalendarView, error) {
	s.lastCmd = cmd
	return s.view, s.err
}

func (s *stubCalendarService) DeleteEvent(_ context.Context, cmd services.DeleteCalendarEventCommand) (services.CalendarView, error) {
	s.lastDelete = cmd
	return s.view, s.err
}

func newCalendarRouter(authn *auth.Authenticator, svc services.CalendarService) chi.Router {
	r := chi.NewRouter()
	r.Route("/calendar", NewCalendarHandlers(authn, svc).Routes)
	return r
}

func TestCalendarHandlers_ListUsesIdentityRoles(t *testing.T) {
	svc := &stubCalendarService{
		view: services.CalendarView{
			Events: []domain.CalendarEvent{{
				ID:           "prod-span-w1",
				Title:        "Paint",
				Date:         "2024-03-01",
				EndDate:      "2024-03-05",
				Category:     domain.EventCategoryProduction,
				EventType:    "production",
				SourceID:     "w1",
				VisibleRoles: []string{"admin", "technician"},
			}},
			PartialSources: []string{"purchase-delivery"},
		},
	}
	authn := auth.NewAuthenticator(staticVerifier{roles: []string{"technician"}})
	router := newCalendarRouter(authn, svc)

	req := httptest.NewRequest(http.MethodGet, "/calendar/events?day=2024-03-04&category=Production,quoting&roles=admin", nil)
	req.Header.Set("Authorization", "Bearer tech")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	filter := svc.lastFilter
	if len(filter.Roles) != 1 || filter.Roles[0] != "technician" {
		t.Fatalf("expected identity roles to win over query, got %v", filter.Roles)
	}
	if filter.Day != "2024-03-04" {
		t.Fatalf("unexpected day %q", filter.Day)
	}
	if len(filter.Categories) != 2 || filter.Categories[0] != domain.EventCategoryProduction || filter.Categories[1] != domain.EventCategoryQuoting {
		t.Fatalf("unexpected categories %v", filter.Categories)
	}

	var body calendarViewPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].EndDate != "2024-03-05" || body.Events[0].Category != "production" {
		t.Fatalf("unexpected events %+v", body.Events)
	}
	if len(body.PartialSources) != 1 || body.PartialSources[0] != "purchase-delivery" {
		t.Fatalf("unexpected partial sources %v", body.PartialSources)
	}
}

func TestCalendarHandlers_ListWithoutAuthReadsRolesQuery(t *testing.T) {
	svc := &stubCalendarService{}
	router := newCalendarRouter(nil, svc)

	req := httptest.NewRequest(http.MethodGet, "/calendar/events?roles=manager,%20sales&from=2024-03-01&to=2024-03-31", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := svc.lastFilter.Roles; len(got) != 2 || got[1] != "sales" {
		t.Fatalf("unexpected roles %v", got)
	}
	if svc.lastFilter.From != "2024-03-01" || svc.lastFilter.To != "2024-03-31" {
		t.Fatalf("unexpected range %+v", svc.lastFilter)
	}
	if !strings.Contains(rr.Body.String(), `"events":[]`) || !strings.Contains(rr.Body.String(), `"partialSources":[]`) {
		t.Fatalf("expected empty arrays, got %s", rr.Body.String())
	}
}

func TestCalendarHandlers_CreateEvent(t *testing.T) {
	svc := &stubCalendarService{
		view: services.CalendarView{Events: []domain.CalendarEvent{{ID: "manual-01h", Title: "Inventory", Date: "2024-03-06", Category: domain.EventCategoryGeneral, EventType: domain.EventTypeManual}}},
	}
	authn := auth.NewAuthenticator(staticVerifier{roles: []string{"manager"}})
	router := newCalendarRouter(authn, svc)

	body := `{"title":"Inventory","date":"2024-03-06","time":"09:30","category":"General","labels":{"bay":"2"}}`
	req := httptest.NewRequest(http.MethodPost, "/calendar/events", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer mgr")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	cmd := svc.lastCmd
	if cmd.Title != "Inventory" || cmd.Date != "2024-03-06" || cmd.Time != "09:30" || cmd.Category != domain.EventCategoryGeneral {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if cmd.VisibleRoles != nil {
		t.Fatalf("expected omitted visible roles to stay nil, got %v", cmd.VisibleRoles)
	}
	if cmd.ActorID != "uid-mgr" || len(cmd.ActorRoles) != 1 || cmd.ActorRoles[0] != "manager" {
		t.Fatalf("unexpected actor %s %v", cmd.ActorID, cmd.ActorRoles)
	}
	if cmd.Labels["bay"] != "2" {
		t.Fatalf("expected labels forwarded, got %v", cmd.Labels)
	}
}

type countingCalendarService struct {
	stubCalendarService
	creates int
}

func (s *countingCalendarService) CreateEvent(ctx context.Context, cmd services.CalendarEventCommand) (services.CalendarView, error) {
	s.creates++
	return s.stubCalendarService.CreateEvent(ctx, cmd)
}

func TestCalendarHandlers_WriteGuardReplaysCreate(t *testing.T) {
	svc := &countingCalendarService{}
	svc.view = services.CalendarView{Events: []domain.CalendarEvent{{ID: "manual-01h", Title: "Inventory", Date: "2024-03-06", Category: domain.EventCategoryGeneral, EventType: domain.EventTypeManual}}}
	authn := auth.NewAuthenticator(staticVerifier{roles: []string{"manager"}})
	router := chi.NewRouter()
	router.Route("/calendar", NewCalendarHandlers(authn, svc,
		WithCalendarWriteMiddlewares(idempotency.Middleware(idempotency.NewMemoryStore(0))),
	).Routes)

	body := `{"title":"Inventory","date":"2024-03-06","category":"general"}`
	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/calendar/events", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer mgr")
		req.Header.Set(idempotency.HeaderName, "create-inventory")
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
		if last.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", last.Code, last.Body.String())
		}
	}
	if svc.creates != 1 {
		t.Fatalf("expected a single create, got %d", svc.creates)
	}
	if last.Header().Get(idempotency.ReplayHeader) != "true" {
		t.Fatal("expected second response to be a replay")
	}

	req := httptest.NewRequest(http.MethodGet, "/calendar/events", nil)
	req.Header.Set("Authorization", "Bearer mgr")
	req.Header.Set(idempotency.HeaderName, "create-inventory")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Header().Get(idempotency.ReplayHeader) != "" {
		t.Fatalf("expected list to bypass the guard, got %d", rr.Code)
	}
}

func TestCalendarHandlers_ExplicitEmptyRolesForwarded(t *testing.T) {
	svc := &stubCalendarService{}
	router := newCalendarRouter(nil, svc)

	req := httptest.NewRequest(http.MethodPut, "/calendar/events/manual-1", strings.NewReader(`{"title":"x","date":"2024-03-06","visibleRoles":[]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastCmd.EventID != "manual-1" {
		t.Fatalf("expected event id from path, got %q", svc.lastCmd.EventID)
	}
	if svc.lastCmd.VisibleRoles == nil || len(svc.lastCmd.VisibleRoles) != 0 {
		t.Fatalf("expected explicit empty roles, got %#v", svc.lastCmd.VisibleRoles)
	}
}

func TestCalendarHandlers_ValidationErrorIncludesField(t *testing.T) {
	svc := &stubCalendarService{err: &services.CalendarValidationError{Field: "date", Message: "must be YYYY-MM-DD"}}
	router := newCalendarRouter(nil, svc)

	req := httptest.NewRequest(http.MethodPost, "/calendar/events", strings.NewReader(`{"title":"x","date":"tomorrow"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "invalid_event" || body["field"] != "date" {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestCalendarHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", services.ErrCalendarForbidden, http.StatusForbidden},
		{"not found", services.ErrCalendarNotFound, http.StatusNotFound},
		{"conflict", services.ErrCalendarConflict, http.StatusConflict},
		{"repository unavailable", stubRepoErr{unavailable: true}, http.StatusServiceUnavailable},
		{"repository not found", stubRepoErr{notFound: true}, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCalendarService{err: tc.err}
			router := newCalendarRouter(nil, svc)

			req := httptest.NewRequest(http.MethodDelete, "/calendar/events/manual-1?roles=technician", nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if svc.lastDelete.EventID != "manual-1" || len(svc.lastDelete.ActorRoles) != 1 {
				t.Fatalf("unexpected delete command %+v", svc.lastDelete)
			}
		})
	}
}

func TestCalendarHandlers_RequiresAuthentication(t *testing.T) {
	authn := auth.NewAuthenticator(staticVerifier{roles: []string{"admin"}})
	router := newCalendarRouter(authn, &stubCalendarService{})

	req := httptest.NewRequest(http.MethodGet, "/calendar/events", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

var _ services.CalendarService = (*stubCalendarService)(nil)
