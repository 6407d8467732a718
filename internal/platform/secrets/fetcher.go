// Package secrets resolves secret:// references used in configuration against Google
// Secret Manager, with a local file fallback for development.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	defaultCacheTTL     = 30 * time.Minute
	latestVersion       = "latest"
	meterName           = "github.com/workshop-planner/api/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// ErrSecretNotFound is returned when neither Secret Manager nor the fallback file holds a value.
var ErrSecretNotFound = errors.New("secrets: secret not found")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves references through a TTL cache, then Secret Manager, then the fallback
// file. Concurrent misses for the same version share one remote call.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger

	env         string
	project     string
	versionPins map[string]string

	fallback *fallbackFile
	cache    *gocache.Cache
	inflight singleflight.Group
	lookups  metric.Int64Counter
}

type fetcherConfig struct {
	logger       *zap.Logger
	env          string
	project      string
	fallbackPath string
	cacheTTL     time.Duration
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
	versionPins  map[string]string
}

// Option customises NewFetcher.
type Option func(*fetcherConfig)

func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithEnvironment selects which "<env>:" version pins apply.
func WithEnvironment(env string) Option {
	return func(cfg *fetcherConfig) { cfg.env = strings.ToLower(strings.TrimSpace(env)) }
}

// WithDefaultProject sets the project for references without ?project=.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.project = strings.TrimSpace(projectID) }
}

// WithFallbackFile sets the local fallback path. An empty path disables the fallback.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *fetcherConfig) {
		if ttl > 0 {
			cfg.cacheTTL = ttl
		}
	}
}

func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

// WithSecretManagerClient injects a client; the fetcher will not close it.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

// WithVersionPins pins versions by canonical reference. Keys may carry an "<env>:" prefix,
// which wins over an unprefixed pin for the same reference.
func WithVersionPins(pins map[string]string) Option {
	return func(cfg *fetcherConfig) {
		cfg.versionPins = make(map[string]string, len(pins))
		for key, version := range pins {
			if version = strings.TrimSpace(version); version != "" {
				cfg.versionPins[strings.TrimSpace(key)] = version
			}
		}
	}
}

// NewFetcher builds a Fetcher. Without usable credentials it runs in fallback-only mode.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		logger:       zap.NewNop(),
		env:          strings.ToLower(strings.TrimSpace(os.Getenv("API_SECURITY_ENVIRONMENT"))),
		fallbackPath: defaultFallbackPath,
		cacheTTL:     defaultCacheTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.env == "" {
		cfg.env = defaultEnvironment
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(meterName)
	}

	f := &Fetcher{
		client:      cfg.client,
		logger:      cfg.logger,
		env:         cfg.env,
		project:     cfg.project,
		versionPins: cfg.versionPins,
		fallback:    &fallbackFile{path: cfg.fallbackPath},
		cache:       gocache.New(cfg.cacheTTL, 2*cfg.cacheTTL),
	}
	lookups, err := cfg.meter.Int64Counter("secrets.lookups", metric.WithDescription("Secret resolutions by source"))
	if err != nil {
		cfg.logger.Warn("secrets: lookup metric unavailable", zap.Error(err))
	} else {
		f.lookups = lookups
	}

	if f.client == nil {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager unavailable; using fallback file only", zap.Error(err))
			return f, nil
		}
		f.client, f.ownsClient = client, true
	}
	return f, nil
}

// Close drops cached values and closes a client the fetcher created.
func (f *Fetcher) Close() error {
	f.cache.Flush()
	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value behind ref.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	parsed, err := ParseReference(ref)
	if err != nil {
		return "", err
	}
	version := f.version(parsed)
	key := cacheKey(parsed.Canonical, version)
	if value, ok := f.cache.Get(key); ok {
		f.record(ctx, "cache")
		return value.(string), nil
	}

	value, source, err := f.load(ctx, parsed, version)
	f.record(ctx, source)
	if err != nil {
		return "", err
	}
	f.cache.SetDefault(key, value)
	return value, nil
}

// Invalidate evicts every cached version of ref.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := ParseReference(ref)
	if err != nil {
		return
	}
	prefix := parsed.Canonical + "#"
	for key := range f.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			f.cache.Delete(key)
		}
	}
}

func (f *Fetcher) load(ctx context.Context, ref Reference, version string) (string, string, error) {
	project := ref.Project
	if project == "" {
		project = f.project
	}
	if project != "" && f.client != nil {
		value, err := f.remote(ctx, ref.resource(project, version))
		if err == nil {
			return value, "remote", nil
		}
		if !unreachable(err) {
			return "", "error", fmt.Errorf("secrets: fetch failed for %s: %w", ref.Canonical, err)
		}
		f.logger.Debug("secrets: secret manager unreachable; trying fallback file",
			zap.String("ref", ref.Canonical), zap.Error(err))
	}

	value, ok, err := f.fallback.lookup(ref, version)
	if err != nil {
		f.logger.Warn("secrets: fallback file unreadable", zap.Error(err))
	}
	if !ok {
		return "", "error", fmt.Errorf("%w: %s", ErrSecretNotFound, ref.Canonical)
	}
	return value, "fallback", nil
}

func (f *Fetcher) remote(ctx context.Context, resource string) (string, error) {
	result, err, _ := f.inflight.Do(resource, func() (any, error) {
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
		if err != nil {
			return "", err
		}
		if resp.GetPayload() == nil {
			return "", fmt.Errorf("secret manager returned empty payload for %s", resource)
		}
		return string(resp.GetPayload().GetData()), nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (f *Fetcher) version(ref Reference) string {
	if ref.Version != "" {
		return ref.Version
	}
	if pin := f.versionPins[f.env+":"+ref.Canonical]; pin != "" {
		return pin
	}
	if pin := f.versionPins[ref.Canonical]; pin != "" {
		return pin
	}
	return latestVersion
}

func (f *Fetcher) record(ctx context.Context, source string) {
	if f.lookups != nil {
		f.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
	}
}

// unreachable reports errors that mean Secret Manager could not answer, as opposed to
// answering that the secret does not exist.
func unreachable(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}
