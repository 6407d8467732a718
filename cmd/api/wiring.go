package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/workshop-planner/api/internal/platform/config"
	"github.com/workshop-planner/api/internal/platform/events"
	"github.com/workshop-planner/api/internal/platform/idempotency"
	"github.com/workshop-planner/api/internal/platform/observability"
	"github.com/workshop-planner/api/internal/platform/secrets"
	"github.com/workshop-planner/api/internal/repositories"
	"github.com/workshop-planner/api/internal/services"
)

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
		secrets.WithDefaultProject(defaultProject),
	}
	if pins := secretVersionPinsFromEnv(lookup("API_SECRET_VERSION_PINS")); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames marks the service account JSON as mandatory only when it is configured
// as a secret reference; otherwise ambient credentials or a credentials file are used.
func requiredSecretNames(env map[string]string) []string {
	if config.IsSecretReference(env["API_FIREBASE_CREDENTIALS_JSON"]) {
		return []string{"Firebase.CredentialsJSON"}
	}
	return nil
}

// secretVersionPinsFromEnv parses "[env:]name=version" pairs separated by commas.
func secretVersionPinsFromEnv(raw string) map[string]string {
	pins := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		ref, version, ok := strings.Cut(strings.TrimSpace(entry), "=")
		ref = strings.TrimSpace(ref)
		version = strings.TrimSpace(version)
		if !ok || ref == "" || version == "" {
			continue
		}
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 && !strings.HasPrefix(ref[idx:], "://") {
			prefix = strings.ToLower(ref[:idx]) + ":"
			ref = ref[idx+1:]
		}
		if config.IsSecretReference(ref) {
			ref = config.NormalizeSecretReference(ref)
		} else {
			ref = "secret://" + ref
		}
		pins[prefix+ref] = version
	}
	return pins
}

// newSchedulePublisher returns a nil publisher when notifications are disabled.
func newSchedulePublisher(ctx context.Context, cfg config.PubSubConfig) (*events.PubSubSchedulePublisher, func(), error) {
	noop := func() {}
	if cfg.Disabled {
		return nil, noop, nil
	}

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub client: %w", err)
	}
	publisher, err := events.NewPubSubSchedulePublisher(client.Topic(cfg.ScheduleTopic))
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return publisher, func() {
		publisher.Stop()
		_ = client.Close()
	}, nil
}

// newHealthRepository probes Firestore and, when configured, the schedule topic.
func newHealthRepository(client *firestore.Client, publisher *events.PubSubSchedulePublisher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "firestore",
			Critical: true,
			Timeout:  1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				_, err := client.Collections(ctx).Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if publisher != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check:   publisher.Ping,
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

// newWriteGuard returns nil when replay protection is switched off.
func newWriteGuard(cfg config.IdempotencyConfig, client *firestore.Client, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	var store idempotency.Store
	switch cfg.Store {
	case "off":
		return nil, nil
	case "memory":
		store = idempotency.NewMemoryStore(cfg.TTL)
	default:
		fsStore, err := idempotency.NewFirestoreStore(client)
		if err != nil {
			return nil, err
		}
		store = fsStore
	}
	return idempotency.Middleware(store,
		idempotency.WithTTL(cfg.TTL),
		idempotency.WithLogger(observability.EventLogger(logger)),
	), nil
}
