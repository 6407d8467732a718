package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/services"
)

func send(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func bodyCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rr.Body.String(), err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestNewRouterServesProbes(t *testing.T) {
	health := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{"firestore": {Status: domain.HealthStatusOK}},
	}}))
	router := NewRouter(WithHealthHandlers(health))

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := send(router, http.MethodGet, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s: unexpected content type %q", path, ct)
		}
		if rr.Header().Get("X-Request-Id") != "" {
			t.Fatalf("%s: request id should not leak as a header", path)
		}
	}
}

func TestNewRouterUnconfiguredFeatures(t *testing.T) {
	router := NewRouter()
	tests := []struct {
		method, path, code string
	}{
		{http.MethodGet, "/api/v1/work-items/wi-1/suggestions", "schedule_unavailable"},
		{http.MethodPost, "/api/v1/work-items/wi-1/schedule", "schedule_unavailable"},
		{http.MethodGet, "/api/v1/capacity", "schedule_unavailable"},
		{http.MethodGet, "/api/v1/calendar/events", "calendar_unavailable"},
	}
	for _, tc := range tests {
		rr := send(router, tc.method, tc.path)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", tc.method, tc.path, rr.Code)
		}
		if got := bodyCode(t, rr); got != tc.code {
			t.Fatalf("%s %s: expected %q, got %q", tc.method, tc.path, tc.code, got)
		}
	}
}

func TestNewRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(
		WithScheduleRoutes(func(r chi.Router) {
			r.Get("/capacity", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
		}),
		WithCalendarRoutes(func(r chi.Router) {
			r.Get("/events", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		}),
	)
	if rr := send(router, http.MethodGet, "/api/v1/capacity"); rr.Code != http.StatusAccepted {
		t.Fatalf("expected schedule registrar on API root, got %d", rr.Code)
	}
	if rr := send(router, http.MethodGet, "/api/v1/calendar/events"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected calendar registrar under /calendar, got %d", rr.Code)
	}
	if rr := send(router, http.MethodDelete, "/api/v1/capacity"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestNewRouterNotFound(t *testing.T) {
	rr := send(NewRouter(), http.MethodGet, "/invoices")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := bodyCode(t, rr); got != "route_not_found" {
		t.Fatalf("expected route_not_found, got %q", got)
	}
}

func TestNewRouterScopesAPIMiddleware(t *testing.T) {
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Planner-Scope", "api")
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(WithAPIMiddlewares(tag))

	if rr := send(router, http.MethodGet, "/api/v1/calendar/events"); rr.Header().Get("X-Planner-Scope") != "api" {
		t.Fatal("expected API middleware on /api/v1 routes")
	}
	if rr := send(router, http.MethodGet, "/healthz"); rr.Header().Get("X-Planner-Scope") != "" {
		t.Fatal("expected probes to skip API middleware")
	}
}

func TestNewRouterRequestTimeout(t *testing.T) {
	var deadline time.Time
	router := NewRouter(
		WithRequestTimeout(2*time.Second),
		WithCalendarRoutes(func(r chi.Router) {
			r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
				deadline, _ = req.Context().Deadline()
				w.WriteHeader(http.StatusOK)
			})
		}),
	)
	start := time.Now()
	send(router, http.MethodGet, "/api/v1/calendar/events")
	if deadline.IsZero() || deadline.Sub(start) > 3*time.Second {
		t.Fatalf("expected ~2s deadline, got %v", deadline.Sub(start))
	}
}
