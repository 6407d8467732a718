package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/workshop-planner/api/internal/platform/httpx"
)

const (
	apiPrefix             = "/api/v1"
	defaultRequestTimeout = 60 * time.Second
)

// RouteRegistrar mounts a feature's routes.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	timeout     time.Duration
	global      []func(http.Handler) http.Handler
	api         []func(http.Handler) http.Handler
	health      *HealthHandlers
	schedule    RouteRegistrar
	calendarAPI RouteRegistrar
}

// Option customises NewRouter.
type Option func(*routerConfig)

// WithMiddlewares appends middleware applied to every route, probes included.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.global = append(cfg.global, mw...) }
}

// WithAPIMiddlewares appends middleware applied under /api/v1 only.
func WithAPIMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.api = append(cfg.api, mw...) }
}

// WithHealthHandlers sets the /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithRequestTimeout caps the time a handler may run before its context is cancelled.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *routerConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithScheduleRoutes mounts the work item and capacity routes on the API root, since they
// span /work-items and /capacity.
func WithScheduleRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.schedule = reg }
}

// WithCalendarRoutes mounts the calendar routes under /api/v1/calendar.
func WithCalendarRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.calendarAPI = reg }
}

// NewRouter assembles the HTTP surface. Features without a registrar answer 503 so a
// deployment missing a backing store fails loudly instead of 404ing.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{timeout: defaultRequestTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(cfg.timeout))
	for _, mw := range cfg.global {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", "method "+req.Method+" not allowed on "+req.URL.Path, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(apiPrefix, func(api chi.Router) {
		for _, mw := range cfg.api {
			if mw != nil {
				api.Use(mw)
			}
		}

		if cfg.schedule != nil {
			cfg.schedule(api)
		} else {
			unavailable := featureUnavailable("schedule")
			api.HandleFunc("/work-items/*", unavailable)
			api.HandleFunc("/capacity", unavailable)
		}

		api.Route("/calendar", func(group chi.Router) {
			if cfg.calendarAPI != nil {
				cfg.calendarAPI(group)
				return
			}
			group.HandleFunc("/*", featureUnavailable("calendar"))
		})
	})
	return r
}

func featureUnavailable(feature string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(feature+"_unavailable", feature+" is not configured on this deployment", http.StatusServiceUnavailable))
	}
}
