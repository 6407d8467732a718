package domain

import "time"

// Health statuses, from best to worst. Readiness fails only on HealthStatusError.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// WorseHealth returns whichever of a and b is more severe. Unknown statuses rank as ok.
func WorseHealth(a, b string) string {
	if healthRank(b) > healthRank(a) {
		return b
	}
	return a
}

func healthRank(status string) int {
	switch status {
	case HealthStatusError:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// SystemHealthCheck is the outcome of one dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport is what /readyz renders: dependency checks keyed by name plus build
// metadata stamped by the system service.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
