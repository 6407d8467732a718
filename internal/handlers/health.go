package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/services"
)

// HealthHandlers serves /healthz and /readyz.
type HealthHandlers struct {
	build  services.BuildInfo
	system services.SystemService
	clock  func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by /healthz.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) { h.build = info }
}

// WithHealthSystemService sets the service consulted by /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) { h.system = svc }
}

// WithHealthClock overrides the clock.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers builds the probes. Without a system service /readyz only reflects liveness.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type buildResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	CommitSHA   string `json:"commitSha"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

type checkResponse struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readinessResponse struct {
	buildResponse
	Checks  map[string]checkResponse `json:"checks"`
	Details []string                 `json:"details,omitempty"`
}

// Healthz reports liveness and build metadata.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.liveness(h.clock().UTC()))
}

// Readyz reports dependency checks. It answers 503 only when a check is in error; a degraded
// planner still serves traffic on fallback capacity.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	resp := readinessResponse{buildResponse: h.liveness(now), Checks: map[string]checkResponse{}}
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, resp)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		resp.Status = domain.HealthStatusError
		resp.Details = []string{err.Error()}
		writeJSONResponse(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = report.Status
	resp.Version = report.Version
	resp.CommitSHA = report.CommitSHA
	resp.Environment = report.Environment
	resp.Uptime = report.Uptime.Round(time.Second).String()
	resp.Timestamp = formatTime(report.GeneratedAt)

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		resp.Checks[name] = checkResponse{
			Status:    check.Status,
			LatencyMs: check.Latency.Milliseconds(),
			Detail:    check.Detail,
			Error:     check.Error,
			CheckedAt: formatTime(check.CheckedAt),
		}
		if check.Status != domain.HealthStatusOK {
			resp.Details = append(resp.Details, name+": "+firstNonBlank(check.Error, check.Detail, check.Status))
		}
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, resp)
}

func (h *HealthHandlers) liveness(now time.Time) buildResponse {
	return buildResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt.UTC()).Round(time.Second).String(),
		Timestamp:   now.Format(time.RFC3339),
	}
}
