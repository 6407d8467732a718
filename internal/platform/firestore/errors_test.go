package firestore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/workshop-planner/api/internal/platform/config"
	"github.com/workshop-planner/api/internal/repositories"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesStatus(t *testing.T) {
	tests := []struct {
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.AlreadyExists, conflict: true},
		{code: codes.Aborted, conflict: true},
		{code: codes.FailedPrecondition, conflict: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.ResourceExhausted, unavailable: true},
		{code: codes.PermissionDenied},
	}
	for _, tc := range tests {
		t.Run(tc.code.String(), func(t *testing.T) {
			err := WrapError("work_items.get", status.Error(tc.code, "boom"))
			var repoErr repositories.RepositoryError
			if !errors.As(err, &repoErr) {
				t.Fatalf("expected repository error, got %T", err)
			}
			if repoErr.IsNotFound() != tc.notFound || repoErr.IsConflict() != tc.conflict || repoErr.IsUnavailable() != tc.unavailable {
				t.Fatalf("unexpected classification for %s: %v", tc.code, err)
			}
			if got := err.Error(); !strings.HasPrefix(got, "work_items.get: ") {
				t.Fatalf("expected op prefix, got %q", got)
			}
		})
	}
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	if err := WrapError("op", status.Error(codes.Canceled, "gone")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", status.Error(codes.DeadlineExceeded, "slow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if err := WrapError("op", context.Canceled); err != context.Canceled {
		t.Fatalf("expected bare context error, got %v", err)
	}
	if WrapError("op", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestWrapErrorKeepsDomainErrors(t *testing.T) {
	domainErr := repositories.NewWorkItemError("work_items.update_schedule", repositories.WorkItemErrorStatusChanged, "work item wi-1 is done", nil)
	err := WrapError("work_items.update_schedule", domainErr)
	if err != error(domainErr) {
		t.Fatalf("expected domain error unchanged, got %#v", err)
	}

	inner := &Error{Err: errors.New("x"), kind: kindNotFound}
	if got := WrapError("calendar_events.get", inner); got != error(inner) || inner.Op != "calendar_events.get" {
		t.Fatalf("expected op to be filled in, got %v", got)
	}
}

func TestCollectionRejectsBlankID(t *testing.T) {
	c := NewCollection[struct{}](NewProvider(configForTest()), "work_items")
	if _, err := c.Get(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank id")
	}
	if c.Name() != "work_items" {
		t.Fatalf("unexpected name %q", c.Name())
	}
}

func TestProviderClosedBeforeDial(t *testing.T) {
	p := NewProvider(configForTest())
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
	err := p.RunTransaction(context.Background(), "work_items.noop", nil)
	if err == nil {
		t.Fatal("expected error for nil transaction func")
	}
}

func configForTest() config.FirestoreConfig {
	return config.FirestoreConfig{ProjectID: "workshop-test"}
}
