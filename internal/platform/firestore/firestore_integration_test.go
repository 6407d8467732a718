//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	pconfig "github.com/workshop-planner/api/internal/platform/config"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/platform/firestore/emulatortest"
)

type bayBooking struct {
	Bay   string `firestore:"bay"`
	Hours int    `firestore:"hours"`
}

func TestCollectionAgainstEmulator(t *testing.T) {
	endpoint := emulatortest.Start(t)
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "workshop-test", EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	bookings := pfirestore.NewCollection[bayBooking](provider, "bay_bookings")

	if err := bookings.Create(ctx, "b-1", bayBooking{Bay: "lift-1", Hours: 4}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := bookings.Create(ctx, "b-1", bayBooking{Bay: "lift-2", Hours: 1})
	var repoErr *pfirestore.Error
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	snap, err := bookings.Get(ctx, "b-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.ID != "b-1" || snap.Data.Bay != "lift-1" || snap.UpdatedAt.IsZero() {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	if err := bookings.Put(ctx, "b-2", bayBooking{Bay: "lift-2", Hours: 6}); err != nil {
		t.Fatalf("put: %v", err)
	}
	long, err := bookings.List(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("hours", ">", 5)
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(long) != 1 || long[0].ID != "b-2" {
		t.Fatalf("unexpected list result %#v", long)
	}

	err = provider.RunTransaction(ctx, "bay_bookings.extend", func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := bookings.Ref(ctx, "b-1")
		if err != nil {
			return err
		}
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var booking bayBooking
		if err := doc.DataTo(&booking); err != nil {
			return err
		}
		booking.Hours += 2
		return tx.Set(ref, booking)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if snap, err = bookings.Get(ctx, "b-1"); err != nil || snap.Data.Hours != 6 {
		t.Fatalf("expected 6 hours after extend, got %#v (%v)", snap.Data, err)
	}

	if err := bookings.Remove(ctx, "b-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, err = bookings.Get(ctx, "b-1")
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if err := bookings.Remove(ctx, "b-1"); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found removing twice, got %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	err = provider.RunTransaction(cancelled, "bay_bookings.noop", func(context.Context, *firestore.Transaction) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}

	if err := provider.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := provider.Client(context.Background()); !errors.Is(err, pfirestore.ErrProviderClosed) {
		t.Fatalf("expected closed provider, got %v", err)
	}
}
