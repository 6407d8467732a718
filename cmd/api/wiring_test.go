package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/workshop-planner/api/internal/platform/config"
)

func TestSecretVersionPinsFromEnv(t *testing.T) {
	pins := secretVersionPinsFromEnv("firebase/admin=3, prod:secret://firebase/admin=7, sm://legacy=2, broken, =1")

	want := map[string]string{
		"secret://firebase/admin":      "3",
		"prod:secret://firebase/admin": "7",
		"secret://legacy":              "2",
	}
	if len(pins) != len(want) {
		t.Fatalf("expected %d pins, got %v", len(want), pins)
	}
	for key, version := range want {
		if pins[key] != version {
			t.Fatalf("expected %s=%s, got %v", key, version, pins)
		}
	}
}

func TestRequiredSecretNames(t *testing.T) {
	if names := requiredSecretNames(map[string]string{}); len(names) != 0 {
		t.Fatalf("expected no required secrets, got %v", names)
	}
	names := requiredSecretNames(map[string]string{"API_FIREBASE_CREDENTIALS_JSON": "secret://firebase/admin"})
	if len(names) != 1 || names[0] != "Firebase.CredentialsJSON" {
		t.Fatalf("expected credentials secret required, got %v", names)
	}
}

func TestBuildInfoFromEnvDefaults(t *testing.T) {
	started := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	info := buildInfoFromEnv(map[string]string{}, config.Config{}, started)
	if info.Version != "dev" || info.CommitSHA != "unknown" || info.Environment != "local" {
		t.Fatalf("unexpected defaults %+v", info)
	}
	if !info.StartedAt.Equal(started) {
		t.Fatalf("expected started at %s, got %s", started, info.StartedAt)
	}
}

func TestNewWriteGuard(t *testing.T) {
	guard, err := newWriteGuard(config.IdempotencyConfig{Store: "off"}, nil, zap.NewNop())
	if err != nil || guard != nil {
		t.Fatalf("expected no guard when off, got %v", err)
	}
	guard, err = newWriteGuard(config.IdempotencyConfig{Store: "memory", TTL: time.Hour}, nil, zap.NewNop())
	if err != nil || guard == nil {
		t.Fatalf("expected memory guard, got %v", err)
	}
	if _, err := newWriteGuard(config.IdempotencyConfig{Store: "firestore", TTL: time.Hour}, nil, zap.NewNop()); err == nil {
		t.Fatal("expected error without a firestore client")
	}
}
