package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/repositories"
)

const (
	systemEventUnhealthy = "system.unhealthy"

	// rosterCheck reports whether capacity is computed from real staff or the fallback.
	rosterCheck = "roster"
)

// BuildInfo is the release metadata reported by /healthz and /readyz.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps wires the system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	// Roster adds a "roster" check that degrades when no active employees exist.
	Roster repositories.RosterRepository
	Clock  func() time.Time
	Build  BuildInfo
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type systemService struct {
	health repositories.HealthRepository
	roster repositories.RosterRepository
	now    func() time.Time
	build  BuildInfo
	log    func(context.Context, string, map[string]any)
}

var _ SystemService = (*systemService)(nil)

// NewSystemService builds the service behind the health endpoints.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &systemService{
		health: deps.HealthRepository,
		roster: deps.Roster,
		now:    func() time.Time { return clock().UTC() },
		build:  deps.Build,
		log:    deps.Logger,
	}
	if s.build.StartedAt.IsZero() {
		s.build.StartedAt = s.now()
	}
	if s.log == nil {
		s.log = func(context.Context, string, map[string]any) {}
	}
	return s, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}
	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.now()
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if s.roster != nil {
		report.Checks[rosterCheck] = s.checkRoster(ctx)
		report.Status = ""
	}
	if report.Status == "" {
		report.Status = worstStatus(report.Checks)
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if report.Version == "" {
		report.Version = s.build.Version
	}
	if report.CommitSHA == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if report.Environment == "" {
		report.Environment = s.build.Environment
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}

	if failing := failingChecks(report.Checks); len(failing) > 0 {
		s.log(ctx, systemEventUnhealthy, map[string]any{"status": report.Status, "checks": failing})
	}
	return report, nil
}

func (s *systemService) checkRoster(ctx context.Context) domain.SystemHealthCheck {
	start := s.now()
	staff, err := s.roster.ListActive(ctx)
	end := s.now()
	check := domain.SystemHealthCheck{Status: domain.HealthStatusOK, Latency: end.Sub(start), CheckedAt: end}
	switch {
	case err != nil:
		check.Status = domain.HealthStatusDegraded
		check.Detail = "roster unavailable; capacity uses fallback headcount"
		check.Error = err.Error()
	case len(staff) == 0:
		check.Status = domain.HealthStatusDegraded
		check.Detail = "no active employees; capacity uses fallback headcount"
	default:
		check.Detail = fmt.Sprintf("%d active employees", len(staff))
	}
	return check
}

func worstStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		status = domain.WorseHealth(status, check.Status)
	}
	return status
}

func failingChecks(checks map[string]domain.SystemHealthCheck) []string {
	var failing []string
	for name, check := range checks {
		if check.Status != domain.HealthStatusOK && check.Status != "" {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return failing
}
