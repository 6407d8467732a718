package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/workshop-planner/api/internal/calendar"
	"github.com/workshop-planner/api/internal/platform/config"
	"github.com/workshop-planner/api/internal/platform/observability"
	"github.com/workshop-planner/api/internal/repositories"
	"github.com/workshop-planner/api/internal/scheduling"
	"github.com/workshop-planner/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Schedule services.ScheduleService
	Calendar services.CalendarService
	System   services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container assembly.
type Option func(*options)

type options struct {
	publisher services.ScheduleEventPublisher
	policy    config.CalendarPolicyFile
	build     services.BuildInfo
	logger    *zap.Logger
	clock     func() time.Time
}

// WithSchedulePublisher announces accepted and released schedules. Without it changes are not published.
func WithSchedulePublisher(publisher services.ScheduleEventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithCalendarPolicy applies the category visibility overrides loaded from the policy file.
func WithCalendarPolicy(policy config.CalendarPolicyFile) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithBuildInfo sets the metadata reported by the health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) {
		o.build = build
	}
}

// WithLogger routes service events and aggregator diagnostics to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring passes the Firestore
// registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	svc, err := buildServices(ctx, reg, cfg, o)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, o options) (Services, error) {
	var svc Services

	if workItems, roster := reg.WorkItems(), reg.Roster(); workItems != nil && roster != nil {
		scheduleSvc, err := services.NewScheduleService(services.ScheduleServiceDeps{
			WorkItems: workItems,
			Roster:    roster,
			Publisher: o.publisher,
			CapacityPolicy: scheduling.CapacityPolicy{
				ShopFloorRoles:     cfg.Scheduling.ShopFloorRoles,
				FallbackEmployees:  cfg.Scheduling.FallbackWorkers,
				FallbackDailyHours: cfg.Scheduling.FallbackDailyHours,
			},
			SuggestionPolicy: scheduling.SuggestionPolicy{
				MaterialsSafetyMarginDays: cfg.Scheduling.MaterialsMarginDays,
				WeeklyCandidates:          cfg.Scheduling.WeeklyCandidates,
			},
			IncludeCapacity: cfg.Scheduling.IncludeCapacity,
			RosterCacheTTL:  cfg.Scheduling.RosterCacheTTL,
			Clock:           o.clock,
			Logger:          observability.EventLogger(o.logger.Named("schedule")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build schedule service: %w", err)
		}
		svc.Schedule = scheduleSvc
	}

	if events := reg.CalendarEvents(); events != nil {
		calendarSvc, err := buildCalendarService(reg, events, cfg, o)
		if err != nil {
			return Services{}, fmt.Errorf("build calendar service: %w", err)
		}
		svc.Calendar = calendarSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Roster:           reg.Roster(),
			Clock:            o.clock,
			Build:            o.build,
			Logger:           observability.EventLogger(o.logger.Named("health")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func buildCalendarService(reg repositories.Registry, events repositories.CalendarEventRepository, cfg config.Config, o options) (services.CalendarService, error) {
	visibility, err := calendar.NewVisibilityPolicy(o.policy.Visibility)
	if err != nil {
		return nil, err
	}

	sources := calendar.Sources{
		ManualEvents:        events,
		Clock:               o.clock,
		QuoteFollowUpDays:   cfg.Calendar.QuoteFollowUpDays,
		SkipVehicleArrivals: cfg.Calendar.SkipVehicleArrivals,
	}
	// Leave absent repositories unset so their sources are not registered.
	if workItems := reg.WorkItems(); workItems != nil {
		sources.WorkItems = workItems
	}
	if orders := reg.PurchaseOrders(); orders != nil {
		sources.PurchaseOrders = orders
	}
	if quotes := reg.Quotes(); quotes != nil {
		sources.Quotes = quotes
	}
	registry, err := calendar.NewDefaultRegistry(sources)
	if err != nil {
		return nil, err
	}

	logger := o.logger.Named("calendar")
	aggregator, err := calendar.NewAggregator(registry,
		calendar.WithVisibilityPolicy(visibility),
		calendar.WithLogger(logger),
		calendar.WithSourceTimeout(cfg.Calendar.SourceTimeout),
	)
	if err != nil {
		return nil, err
	}
	return services.NewCalendarService(services.CalendarServiceDeps{
		Aggregator:  aggregator,
		Events:      events,
		EditorRoles: cfg.Calendar.EditorRoles,
		Clock:       o.clock,
		Logger:      observability.EventLogger(logger),
	})
}
