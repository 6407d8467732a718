package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/workshop-planner/api/internal/domain"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/repositories"
)

const calendarEventsCollection = "calendar_events"

type calendarEventDocument struct {
	Title        string         `firestore:"title"`
	Description  string         `firestore:"description,omitempty"`
	Date         string         `firestore:"date"`
	EndDate      string         `firestore:"endDate,omitempty"`
	Time         string         `firestore:"time,omitempty"`
	Category     string         `firestore:"category"`
	Metadata     map[string]any `firestore:"metadata,omitempty"`
	VisibleRoles []string       `firestore:"visibleRoles"`
	CreatedBy    string         `firestore:"createdBy,omitempty"`
	CreatedAt    time.Time      `firestore:"createdAt"`
	UpdatedAt    time.Time      `firestore:"updatedAt"`
}

// CalendarEventRepository persists manual calendar events.
type CalendarEventRepository struct {
	provider *pfirestore.Provider
	docs     *pfirestore.Collection[calendarEventDocument]
}

// NewCalendarEventRepository constructs a Firestore-backed calendar event repository.
func NewCalendarEventRepository(provider *pfirestore.Provider) (*CalendarEventRepository, error) {
	if provider == nil {
		return nil, errors.New("calendar event repository requires firestore provider")
	}
	return &CalendarEventRepository{
		provider: provider,
		docs:     pfirestore.NewCollection[calendarEventDocument](provider, calendarEventsCollection),
	}, nil
}

// List returns every manual event ordered by date.
func (r *CalendarEventRepository) List(ctx context.Context) ([]domain.CalendarEvent, error) {
	snaps, err := r.docs.List(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("date", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	events := make([]domain.CalendarEvent, 0, len(snaps))
	for _, doc := range snaps {
		events = append(events, calendarEventFromDocument(doc.ID, doc.Data))
	}
	return events, nil
}

// Get loads one manual event.
func (r *CalendarEventRepository) Get(ctx context.Context, id string) (domain.CalendarEvent, error) {
	doc, err := r.docs.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return calendarEventFromDocument(doc.ID, doc.Data), nil
}

// Insert creates the event and fails when the id is taken.
func (r *CalendarEventRepository) Insert(ctx context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error) {
	if err := r.docs.Create(ctx, strings.TrimSpace(event.ID), calendarEventToDocument(event)); err != nil {
		return domain.CalendarEvent{}, err
	}
	return event, nil
}

// Update replaces an existing event, keeping its creation metadata.
func (r *CalendarEventRepository) Update(ctx context.Context, event domain.CalendarEvent) (domain.CalendarEvent, error) {
	id := strings.TrimSpace(event.ID)
	var result domain.CalendarEvent
	err := r.provider.RunTransaction(ctx, "calendar_events.update", func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.docs.Ref(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var existing calendarEventDocument
		if err := snap.DataTo(&existing); err != nil {
			return err
		}
		doc := calendarEventToDocument(event)
		doc.CreatedAt = existing.CreatedAt
		doc.CreatedBy = existing.CreatedBy
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = calendarEventFromDocument(id, doc)
		return nil
	})
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return result, nil
}

// Delete removes the event and fails when it does not exist.
func (r *CalendarEventRepository) Delete(ctx context.Context, id string) error {
	return r.docs.Remove(ctx, strings.TrimSpace(id))
}

func calendarEventToDocument(event domain.CalendarEvent) calendarEventDocument {
	return calendarEventDocument{
		Title:        event.Title,
		Description:  event.Description,
		Date:         event.Date,
		EndDate:      event.EndDate,
		Time:         event.Time,
		Category:     string(event.Category),
		Metadata:     event.Metadata,
		VisibleRoles: event.VisibleRoles,
		CreatedBy:    event.CreatedBy,
		CreatedAt:    event.CreatedAt.UTC(),
		UpdatedAt:    event.UpdatedAt.UTC(),
	}
}

func calendarEventFromDocument(id string, doc calendarEventDocument) domain.CalendarEvent {
	return domain.CalendarEvent{
		ID:           id,
		Title:        doc.Title,
		Description:  doc.Description,
		Date:         doc.Date,
		EndDate:      doc.EndDate,
		Time:         doc.Time,
		Category:     domain.EventCategory(doc.Category),
		EventType:    domain.EventTypeManual,
		SourceID:     id,
		Metadata:     doc.Metadata,
		VisibleRoles: doc.VisibleRoles,
		CreatedBy:    doc.CreatedBy,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

var _ repositories.CalendarEventRepository = (*CalendarEventRepository)(nil)
