//go:build integration

package firestore

import (
	"context"
	"testing"

	pconfig "github.com/workshop-planner/api/internal/platform/config"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/platform/firestore/emulatortest"
)

func newEmulatorProvider(t *testing.T, projectID string) *pfirestore.Provider {
	t.Helper()
	endpoint := emulatortest.Start(t)
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: projectID, EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}
