package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/workshop-planner/api/internal/di"
	"github.com/workshop-planner/api/internal/handlers"
	"github.com/workshop-planner/api/internal/platform/auth"
	"github.com/workshop-planner/api/internal/platform/config"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/platform/observability"
	firestoreRepo "github.com/workshop-planner/api/internal/repositories/firestore"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	policyFile, err := config.LoadCalendarPolicy(cfg.Calendar.PolicyFile)
	if err != nil {
		logger.Fatal("failed to load calendar policy", zap.Error(err))
	}
	policyFile.Apply(&cfg)

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	publisher, closePublisher, err := newSchedulePublisher(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal("failed to initialise schedule publisher", zap.Error(err))
	}
	defer closePublisher()
	if publisher == nil {
		logger.Info("schedule change notifications disabled")
	}

	healthRepo, err := newHealthRepository(firestoreClient, publisher)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	repos, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	containerOpts := []di.Option{
		di.WithCalendarPolicy(policyFile),
		di.WithBuildInfo(buildInfo),
		di.WithLogger(logger),
	}
	// A typed nil publisher must not reach the interface.
	if publisher != nil {
		containerOpts = append(containerOpts, di.WithSchedulePublisher(publisher))
	}
	container, err := di.NewContainer(ctx, cfg, repos, containerOpts...)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier,
		auth.WithRoleClaim(cfg.Firebase.RoleClaim),
		auth.WithFallbackRole(cfg.Firebase.FallbackRole),
		auth.WithVerificationTimeout(cfg.Firebase.VerifyTimeout),
	)

	writeGuard, err := newWriteGuard(cfg.Idempotency, firestoreClient, logger.Named("idempotency"))
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	scheduleOpts := []handlers.ScheduleOption{handlers.WithScheduleWriteRoles(cfg.Calendar.EditorRoles...)}
	var calendarOpts []handlers.CalendarOption
	if writeGuard != nil {
		scheduleOpts = append(scheduleOpts, handlers.WithScheduleWriteMiddlewares(writeGuard))
		calendarOpts = append(calendarOpts, handlers.WithCalendarWriteMiddlewares(writeGuard))
	}
	scheduleHandlers := handlers.NewScheduleHandlers(authenticator, container.Services.Schedule, scheduleOpts...)
	calendarHandlers := handlers.NewCalendarHandlers(authenticator, container.Services.Calendar, calendarOpts...)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)

	projectID := traceProjectID(cfg)
	routerOpts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.Tracing(projectID),
			observability.AccessLog(logger.Named("http")),
			observability.Recover(logger.Named("http")),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAPIMiddlewares(
			handlers.RateLimitMiddleware(cfg.RateLimits.DefaultPerMinute, cfg.RateLimits.AuthenticatedPerMinute),
		),
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
	}
	if container.Services.Schedule != nil {
		routerOpts = append(routerOpts, handlers.WithScheduleRoutes(scheduleHandlers.Routes))
	} else {
		logger.Warn("schedule routes unavailable; work item repository not configured")
	}
	if container.Services.Calendar != nil {
		routerOpts = append(routerOpts, handlers.WithCalendarRoutes(calendarHandlers.Routes))
	} else {
		logger.Warn("calendar routes unavailable; calendar repositories not configured")
	}
	router := handlers.NewRouter(routerOpts...)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("workshop planner api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
