package domain

import "testing"

func TestWorseHealth(t *testing.T) {
	tests := []struct {
		a, b, want string
	}{
		{HealthStatusOK, HealthStatusOK, HealthStatusOK},
		{HealthStatusOK, HealthStatusDegraded, HealthStatusDegraded},
		{HealthStatusError, HealthStatusDegraded, HealthStatusError},
		{HealthStatusDegraded, "unknown", HealthStatusDegraded},
		{"", HealthStatusError, HealthStatusError},
	}
	for _, tc := range tests {
		if got := WorseHealth(tc.a, tc.b); got != tc.want {
			t.Errorf("WorseHealth(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
	}
}
