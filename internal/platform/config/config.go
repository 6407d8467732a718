// Package config loads the planner's runtime settings from the environment.
//
// Values are read from, in increasing precedence, a dotenv file, the process
// environment and an explicit override map. Fields holding secret:// (or legacy
// sm://) references are resolved through a SecretResolver.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultRequestTimeout      = 60 * time.Second
	defaultRateLimitDefault    = 120
	defaultRateLimitAuth       = 240
	defaultMaterialsMarginDays = 2
	defaultWeeklyCandidates    = 4
	defaultFallbackWorkers     = 3
	defaultFallbackDailyHours  = 24
	defaultRosterCacheTTL      = 5 * time.Minute
	defaultQuoteFollowUpDays   = 7
	defaultSourceTimeout       = 5 * time.Second
	defaultScheduleTopic       = "workshop-schedule-changes"
	defaultEnvironment         = "local"
	defaultRoleClaim           = "roles"
	defaultVerifyTimeout       = 5 * time.Second
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultIdempotencyStore    = "firestore"
)

var defaultEditorRoles = []string{"admin", "manager"}

// Config is the full runtime configuration, grouped by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	Scheduling  SchedulingConfig
	Calendar    CalendarConfig
	RateLimits  RateLimitConfig
	Idempotency IdempotencyConfig
	Security    SecurityConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	// CredentialsJSON may hold a secret:// reference.
	CredentialsJSON string
	RoleClaim       string
	FallbackRole    string
	CheckRevoked    bool
	VerifyTimeout   time.Duration
}

type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig controls schedule change notifications.
type PubSubConfig struct {
	ProjectID     string
	ScheduleTopic string
	EmulatorHost  string
	Disabled      bool
}

// SchedulingConfig tunes the suggestion engine and capacity model.
type SchedulingConfig struct {
	MaterialsMarginDays int
	WeeklyCandidates    int
	FallbackWorkers     int
	FallbackDailyHours  float64
	// ShopFloorRoles restricts which roster roles count toward capacity; empty counts all.
	ShopFloorRoles  []string
	RosterCacheTTL  time.Duration
	IncludeCapacity bool
}

// CalendarConfig tunes the calendar aggregator.
type CalendarConfig struct {
	PolicyFile          string
	QuoteFollowUpDays   int
	SourceTimeout       time.Duration
	EditorRoles         []string
	SkipVehicleArrivals bool
}

type RateLimitConfig struct {
	DefaultPerMinute       int
	AuthenticatedPerMinute int
}

// IdempotencyConfig controls replay of retried schedule and calendar writes.
type IdempotencyConfig struct {
	// Store is "firestore", "memory" or "off".
	Store string
	TTL   time.Duration
}

type SecurityConfig struct {
	Environment string
}

// ValidationError lists config fields that are missing, malformed or out of range.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the offending field paths.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// WithEnvFile overrides the dotenv path. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap sets values that take precedence over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets names secret-backed fields (e.g. "Firebase.CredentialsJSON")
// that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged key/value view Load reads from, so callers can
// configure dependencies such as the secret fetcher before loading.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	env, err := newEnvironment(newLoaderOptions(opts))
	if err != nil {
		return nil, err
	}
	return env.values(), nil
}

// Load reads, resolves and validates the configuration.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	env, err := newEnvironment(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:    env.duration("Server.ReadTimeout", "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   env.duration("Server.WriteTimeout", "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    env.duration("Server.IdleTimeout", "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: env.duration("Server.RequestTimeout", "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("API_FIREBASE_CREDENTIALS_FILE", ""),
			CredentialsJSON: env.str("API_FIREBASE_CREDENTIALS_JSON", ""),
			RoleClaim:       env.str("API_FIREBASE_ROLE_CLAIM", defaultRoleClaim),
			FallbackRole:    env.lower("API_FIREBASE_FALLBACK_ROLE", ""),
			CheckRevoked:    env.flag("Firebase.CheckRevoked", "API_FIREBASE_CHECK_REVOKED", false),
			VerifyTimeout:   env.duration("Firebase.VerifyTimeout", "API_FIREBASE_VERIFY_TIMEOUT", defaultVerifyTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:     env.str("API_PUBSUB_PROJECT_ID", ""),
			ScheduleTopic: env.str("API_PUBSUB_SCHEDULE_TOPIC", defaultScheduleTopic),
			EmulatorHost:  env.str("API_PUBSUB_EMULATOR_HOST", ""),
			Disabled:      env.flag("PubSub.Disabled", "API_PUBSUB_DISABLED", false),
		},
		Scheduling: SchedulingConfig{
			MaterialsMarginDays: env.integer("Scheduling.MaterialsMarginDays", "API_SCHEDULING_MATERIALS_MARGIN_DAYS", defaultMaterialsMarginDays),
			WeeklyCandidates:    env.integer("Scheduling.WeeklyCandidates", "API_SCHEDULING_WEEKLY_CANDIDATES", defaultWeeklyCandidates),
			FallbackWorkers:     env.integer("Scheduling.FallbackWorkers", "API_SCHEDULING_FALLBACK_WORKERS", defaultFallbackWorkers),
			FallbackDailyHours:  env.float("Scheduling.FallbackDailyHours", "API_SCHEDULING_FALLBACK_DAILY_HOURS", defaultFallbackDailyHours),
			ShopFloorRoles:      env.list("API_SCHEDULING_SHOPFLOOR_ROLES"),
			RosterCacheTTL:      env.duration("Scheduling.RosterCacheTTL", "API_SCHEDULING_ROSTER_CACHE_TTL", defaultRosterCacheTTL),
			IncludeCapacity:     env.flag("Scheduling.IncludeCapacity", "API_SCHEDULING_INCLUDE_CAPACITY", true),
		},
		Calendar: CalendarConfig{
			PolicyFile:          env.str("API_CALENDAR_POLICY_FILE", ""),
			QuoteFollowUpDays:   env.integer("Calendar.QuoteFollowUpDays", "API_CALENDAR_QUOTE_FOLLOWUP_DAYS", defaultQuoteFollowUpDays),
			SourceTimeout:       env.duration("Calendar.SourceTimeout", "API_CALENDAR_SOURCE_TIMEOUT", defaultSourceTimeout),
			EditorRoles:         env.list("API_CALENDAR_EDITOR_ROLES"),
			SkipVehicleArrivals: env.flag("Calendar.SkipVehicleArrivals", "API_CALENDAR_SKIP_VEHICLE_ARRIVALS", false),
		},
		RateLimits: RateLimitConfig{
			DefaultPerMinute:       env.integer("RateLimits.DefaultPerMinute", "API_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
			AuthenticatedPerMinute: env.integer("RateLimits.AuthenticatedPerMinute", "API_RATELIMIT_AUTH_PER_MIN", defaultRateLimitAuth),
		},
		Idempotency: IdempotencyConfig{
			Store: env.lower("API_IDEMPOTENCY_STORE", defaultIdempotencyStore),
			TTL:   env.duration("Idempotency.TTL", "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		Security: SecurityConfig{
			Environment: env.lower("API_SECURITY_ENVIRONMENT", defaultEnvironment),
		},
	}
	cfg.applyDerivedDefaults()

	secrets := secretFields{resolver: options.secret, resolved: make(map[string]string)}
	if err := secrets.resolve(ctx, "Firebase.CredentialsJSON", &cfg.Firebase.CredentialsJSON); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(env.malformed); err != nil {
		return Config{}, err
	}
	if missing := secrets.missing(options.requiredSecrets); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

// applyDerivedDefaults fills settings whose default depends on another setting.
func (c *Config) applyDerivedDefaults() {
	if c.Firestore.ProjectID == "" {
		c.Firestore.ProjectID = c.Firebase.ProjectID
	}
	if c.PubSub.ProjectID == "" {
		c.PubSub.ProjectID = c.Firestore.ProjectID
	}
	if len(c.Calendar.EditorRoles) == 0 {
		c.Calendar.EditorRoles = append([]string(nil), defaultEditorRoles...)
	}
}

func (c Config) validate(malformed []string) error {
	invalid := append([]string(nil), malformed...)
	check := func(ok bool, field string) {
		if !ok {
			invalid = append(invalid, field)
		}
	}

	check(c.Server.Port != "", "Server.Port")
	check(c.Server.RequestTimeout > 0, "Server.RequestTimeout")
	check(c.Firebase.ProjectID != "", "Firebase.ProjectID")
	check(c.Firestore.ProjectID != "", "Firestore.ProjectID")
	check(c.PubSub.Disabled || c.PubSub.ScheduleTopic != "", "PubSub.ScheduleTopic")
	check(c.Scheduling.WeeklyCandidates > 0, "Scheduling.WeeklyCandidates")
	check(c.Scheduling.MaterialsMarginDays >= 0, "Scheduling.MaterialsMarginDays")
	check(c.Scheduling.FallbackWorkers > 0, "Scheduling.FallbackWorkers")
	check(c.Scheduling.FallbackDailyHours > 0, "Scheduling.FallbackDailyHours")
	check(c.Calendar.QuoteFollowUpDays >= 0, "Calendar.QuoteFollowUpDays")
	check(c.Calendar.SourceTimeout > 0, "Calendar.SourceTimeout")
	switch c.Idempotency.Store {
	case "firestore", "memory", "off":
		check(c.Idempotency.Store == "off" || c.Idempotency.TTL > 0, "Idempotency.TTL")
	default:
		invalid = append(invalid, "Idempotency.Store")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: dedupe(invalid)}
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
