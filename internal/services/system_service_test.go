package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/repositories"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

type stubActiveRoster struct {
	entries []domain.RosterEntry
	err     error
}

func (s stubActiveRoster) ListActive(context.Context) ([]domain.RosterEntry, error) {
	return s.entries, s.err
}

func checks(statuses map[string]string) map[string]domain.SystemHealthCheck {
	out := make(map[string]domain.SystemHealthCheck, len(statuses))
	for name, status := range statuses {
		out[name] = domain.SystemHealthCheck{Status: status}
	}
	return out
}

func TestSystemServiceStampsBuildInfo(t *testing.T) {
	started := time.Date(2024, time.March, 4, 7, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Checks: checks(map[string]string{"firestore": domain.HealthStatusOK}),
		}},
		Clock: func() time.Time { return now },
		Build: BuildInfo{Version: "2.4.0", CommitSHA: "9f1c2e", Environment: "staging", StartedAt: started},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	want := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      checks(map[string]string{"firestore": domain.HealthStatusOK}),
		Version:     "2.4.0",
		CommitSHA:   "9f1c2e",
		Environment: "staging",
		Uptime:      90 * time.Minute,
		GeneratedAt: now,
	}
	if !reflect.DeepEqual(report, want) {
		t.Fatalf("unexpected report\n got %+v\nwant %+v", report, want)
	}
}

func TestSystemServiceKeepsRepositoryMetadata(t *testing.T) {
	generated := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.FixedZone("CET", 3600))
	svc, _ := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			Version:     "from-repo",
			GeneratedAt: generated,
		}},
		Build: BuildInfo{Version: "from-build"},
	})
	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Version != "from-repo" {
		t.Fatalf("expected repository version to win, got %q", report.Version)
	}
	if report.GeneratedAt.Location() != time.UTC || !report.GeneratedAt.Equal(generated) {
		t.Fatalf("expected UTC timestamp, got %s", report.GeneratedAt)
	}
}

func TestSystemServicePropagatesCollectError(t *testing.T) {
	boom := errors.New("collect failed")
	svc, _ := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{err: boom}})
	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error without health repository")
	}
}

func TestSystemServiceDerivesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]string
		want   string
	}{
		{name: "all ok", checks: map[string]string{"firestore": "ok", "pubsub": "ok"}, want: domain.HealthStatusOK},
		{name: "one degraded", checks: map[string]string{"firestore": "ok", "pubsub": "degraded"}, want: domain.HealthStatusDegraded},
		{name: "error beats degraded", checks: map[string]string{"firestore": "error", "pubsub": "degraded"}, want: domain.HealthStatusError},
		{name: "no checks", checks: nil, want: domain.HealthStatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := NewSystemService(SystemServiceDeps{HealthRepository: &stubHealthRepository{
				report: domain.SystemHealthReport{Checks: checks(tc.checks)},
			}})
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("HealthReport: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, report.Status)
			}
		})
	}
}

func TestSystemServiceRosterCheck(t *testing.T) {
	tests := []struct {
		name       string
		roster     stubActiveRoster
		wantStatus string
		wantDetail string
	}{
		{
			name:       "staffed",
			roster:     stubActiveRoster{entries: []domain.RosterEntry{{ID: "emp-1"}, {ID: "emp-2"}, {ID: "emp-3"}}},
			wantStatus: domain.HealthStatusOK,
			wantDetail: "3 active employees",
		},
		{
			name:       "empty roster",
			roster:     stubActiveRoster{},
			wantStatus: domain.HealthStatusDegraded,
			wantDetail: "no active employees; capacity uses fallback headcount",
		},
		{
			name:       "roster unavailable",
			roster:     stubActiveRoster{err: errors.New("firestore down")},
			wantStatus: domain.HealthStatusDegraded,
			wantDetail: "roster unavailable; capacity uses fallback headcount",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var logged []string
			svc, _ := NewSystemService(SystemServiceDeps{
				HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
					Status: domain.HealthStatusOK,
					Checks: checks(map[string]string{"firestore": domain.HealthStatusOK}),
				}},
				Roster: tc.roster,
				Logger: func(_ context.Context, event string, _ map[string]any) { logged = append(logged, event) },
			})
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("HealthReport: %v", err)
			}
			check := report.Checks["roster"]
			if check.Status != tc.wantStatus || check.Detail != tc.wantDetail {
				t.Fatalf("unexpected roster check %+v", check)
			}
			if report.Status != tc.wantStatus {
				t.Fatalf("expected overall %s, got %s", tc.wantStatus, report.Status)
			}
			if degraded := tc.wantStatus != domain.HealthStatusOK; degraded != (len(logged) == 1) {
				t.Fatalf("unexpected unhealthy events %v", logged)
			}
		})
	}
}

func TestSystemServiceLogsFailingChecksSorted(t *testing.T) {
	var fields map[string]any
	svc, _ := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{report: domain.SystemHealthReport{
			Checks: checks(map[string]string{"secrets": "degraded", "firestore": "error", "pubsub": "ok"}),
		}},
		Logger: func(_ context.Context, event string, f map[string]any) {
			if event == systemEventUnhealthy {
				fields = f
			}
		},
	})
	if _, err := svc.HealthReport(context.Background()); err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if got, _ := fields["checks"].([]string); !reflect.DeepEqual(got, []string{"firestore", "secrets"}) {
		t.Fatalf("unexpected failing checks %v", fields["checks"])
	}
	if fields["status"] != domain.HealthStatusError {
		t.Fatalf("unexpected status field %v", fields["status"])
	}
}

var (
	_ repositories.HealthRepository = (*stubHealthRepository)(nil)
	_ repositories.RosterRepository = stubActiveRoster{}
)
