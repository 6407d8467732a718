package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/workshop-planner/api/internal/platform/auth"
	"github.com/workshop-planner/api/internal/platform/httpx"
)

const rateLimitWindow = time.Minute

type rateLimiter interface {
	Allow(key string) bool
}

// fixedWindowLimiter counts requests per key in fixed windows; expired counters are
// evicted by the cache janitor.
type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	counts *gocache.Cache
}

func newFixedWindowLimiter(limit int, window time.Duration) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &fixedWindowLimiter{
		limit:  limit,
		window: window,
		counts: gocache.New(window, 2*window),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	if err := l.counts.Add(key, 1, l.window); err == nil {
		return true
	}
	count, err := l.counts.IncrementInt(key, 1)
	if err != nil {
		// The counter expired between Add and Increment; start a new window.
		l.counts.Set(key, 1, l.window)
		return true
	}
	return count <= l.limit
}

// RateLimitMiddleware throttles requests per caller. Requests carrying a bearer token
// draw from the authenticated budget keyed by user or token digest; others are keyed by
// client IP.
func RateLimitMiddleware(anonymousPerMinute, authenticatedPerMinute int) func(http.Handler) http.Handler {
	anonymous := newFixedWindowLimiter(anonymousPerMinute, rateLimitWindow)
	authenticated := newFixedWindowLimiter(authenticatedPerMinute, rateLimitWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter, key := anonymous, "ip:"+clientIP(r)
			if actor := auth.ActorID(r.Context()); actor != "" {
				limiter, key = authenticated, "uid:"+actor
			} else if token := bearerToken(r); token != "" {
				sum := sha256.Sum256([]byte(token))
				limiter, key = authenticated, "tok:"+hex.EncodeToString(sum[:12])
			}
			if limiter != nil && !limiter.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
