package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/workshop-planner/api/internal/platform/auth"
	"github.com/workshop-planner/api/internal/platform/httpx"
)

const (
	// HeaderName carries the client-chosen key.
	HeaderName = "Idempotency-Key"
	// ReplayHeader marks responses served from a stored outcome.
	ReplayHeader = "Idempotent-Replayed"

	maxKeyLength = 128
)

type guard struct {
	store  Store
	header string
	ttl    time.Duration
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// Option customises the middleware.
type Option func(*guard)

// WithHeader overrides the request header holding the key.
func WithHeader(name string) Option {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

// WithTTL sets how long keys and outcomes are kept.
func WithTTL(ttl time.Duration) Option {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger receives store failures.
func WithLogger(logger func(ctx context.Context, event string, fields map[string]any)) Option {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Middleware guards mutating requests that carry an Idempotency-Key header. Requests without the
// header pass through untouched. Keys are scoped to the authenticated caller, so mount it after
// authentication.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:  store,
		header: HeaderName,
		ttl:    DefaultTTL,
		clock:  time.Now,
		logger: func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g.wrap
}

func (g *guard) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		raw := strings.TrimSpace(r.Header.Get(g.header))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		if len(raw) > maxKeyLength {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_idempotency_key", "idempotency key exceeds 128 characters", http.StatusBadRequest))
			return
		}

		body, err := bufferBody(r)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
			return
		}

		key := callerScope(ctx) + "|" + raw
		fingerprint := requestFingerprint(r, body)

		claim, entry, err := g.store.Claim(ctx, key, fingerprint, g.clock(), g.ttl)
		switch {
		case errors.Is(err, ErrKeyReused):
			httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_reused", "idempotency key was used for a different request", http.StatusUnprocessableEntity))
			return
		case err != nil:
			g.logger(ctx, "idempotency.claim_failed", map[string]any{"error": err.Error()})
			httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusServiceUnavailable))
			return
		}

		switch claim {
		case ClaimReplay:
			replay(w, entry)
			return
		case ClaimInFlight:
			httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this idempotency key is still running", http.StatusConflict))
			return
		}

		rec := &recorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		// Server failures are not recorded so the client can retry with the same key.
		if rec.status() >= http.StatusInternalServerError {
			if err := g.store.Forget(ctx, key); err != nil {
				g.logger(ctx, "idempotency.forget_failed", map[string]any{"error": err.Error()})
			}
			return
		}
		outcome := Outcome{
			Status:      rec.status(),
			ContentType: rec.Header().Get("Content-Type"),
			Location:    rec.Header().Get("Location"),
			Body:        rec.body.Bytes(),
		}
		if err := g.store.Complete(context.WithoutCancel(ctx), key, fingerprint, outcome, g.clock(), g.ttl); err != nil {
			g.logger(ctx, "idempotency.complete_failed", map[string]any{
				"error":  err.Error(),
				"status": outcome.Status,
			})
		}
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func callerScope(ctx context.Context) string {
	if actor := auth.ActorID(ctx); actor != "" {
		return actor
	}
	return "anonymous"
}

func requestFingerprint(r *http.Request, body []byte) string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL.Path)
	b.WriteByte('?')
	b.WriteString(r.URL.RawQuery)
	b.WriteByte('\n')
	b.Write(body)
	return digest([]byte(b.String()))
}

func replay(w http.ResponseWriter, entry Entry) {
	header := w.Header()
	if entry.ContentType != "" {
		header.Set("Content-Type", entry.ContentType)
	}
	if entry.Location != "" {
		header.Set("Location", entry.Location)
	}
	header.Set(ReplayHeader, "true")
	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(entry.Body) > 0 {
		_, _ = w.Write(entry.Body)
	}
}

// recorder passes the response through while keeping a copy of the body.
type recorder struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

func (r *recorder) status() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}
