package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/workshop-planner/api/internal/domain"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/repositories"
)

const workItemsCollection = "work_items"

type workItemDocument struct {
	Title             string     `firestore:"title"`
	Hours             float64    `firestore:"hours"`
	TotalDays         int        `firestore:"totalDays"`
	Status            string     `firestore:"status"`
	Priority          int        `firestore:"priority"`
	MaterialsRequired bool       `firestore:"materialsRequired"`
	MaterialsReady    bool       `firestore:"materialsReady"`
	DesignRequired    bool       `firestore:"designRequired"`
	DesignReady       bool       `firestore:"designReady"`
	StartDate         *time.Time `firestore:"startDate,omitempty"`
	EndDate           *time.Time `firestore:"endDate,omitempty"`
	VehicleArrival    *time.Time `firestore:"vehicleArrival,omitempty"`
	UpdatedAt         time.Time  `firestore:"updatedAt"`
}

// WorkItemRepository implements repositories.WorkItemRepository on the work_items collection.
type WorkItemRepository struct {
	provider *pfirestore.Provider
	docs     *pfirestore.Collection[workItemDocument]
}

// NewWorkItemRepository constructs a Firestore-backed work item repository.
func NewWorkItemRepository(provider *pfirestore.Provider) (*WorkItemRepository, error) {
	if provider == nil {
		return nil, errors.New("work item repository requires firestore provider")
	}
	return &WorkItemRepository{
		provider: provider,
		docs:     pfirestore.NewCollection[workItemDocument](provider, workItemsCollection),
	}, nil
}

// FindByID loads a single work item.
func (r *WorkItemRepository) FindByID(ctx context.Context, id string) (domain.WorkItem, error) {
	id = strings.TrimSpace(id)
	doc, err := r.docs.Get(ctx, id)
	if err != nil {
		return domain.WorkItem{}, err
	}
	return workItemFromDocument(doc.ID, doc.Data), nil
}

// ListByStatus returns items whose status is any of statuses, ordered by document id.
func (r *WorkItemRepository) ListByStatus(ctx context.Context, statuses ...domain.WorkItemStatus) ([]domain.WorkItem, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	snaps, err := r.docs.List(ctx, func(q firestore.Query) firestore.Query {
		if len(values) > 0 {
			q = q.Where("status", "in", values)
		}
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.WorkItem, 0, len(snaps))
	for _, doc := range snaps {
		items = append(items, workItemFromDocument(doc.ID, doc.Data))
	}
	return items, nil
}

// UpdateSchedule writes status and dates inside a transaction guarded by the expected statuses.
func (r *WorkItemRepository) UpdateSchedule(ctx context.Context, update repositories.WorkItemScheduleUpdate) (domain.WorkItem, error) {
	const op = "work_items.update_schedule"
	id := strings.TrimSpace(update.ID)
	if id == "" {
		return domain.WorkItem{}, repositories.NewWorkItemError(op, repositories.WorkItemErrorInvalidInput, "work item id is required", nil)
	}
	if !update.Status.Valid() {
		return domain.WorkItem{}, repositories.NewWorkItemError(op, repositories.WorkItemErrorInvalidInput, fmt.Sprintf("unknown status %q", update.Status), nil)
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	updatedAt = updatedAt.UTC()

	var result domain.WorkItem
	err := r.provider.RunTransaction(ctx, op, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.docs.Ref(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc workItemDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode work item %s: %w", id, err)
		}
		if len(update.ExpectedStatuses) > 0 && !statusIn(domain.WorkItemStatus(doc.Status), update.ExpectedStatuses) {
			return repositories.NewWorkItemError(op, repositories.WorkItemErrorStatusChanged,
				fmt.Sprintf("work item %s is %s", id, doc.Status), nil)
		}

		doc.Status = string(update.Status)
		doc.StartDate = utcPtr(update.StartDate)
		doc.EndDate = utcPtr(update.EndDate)
		doc.UpdatedAt = updatedAt
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: doc.Status},
			{Path: "startDate", Value: dateValue(doc.StartDate)},
			{Path: "endDate", Value: dateValue(doc.EndDate)},
			{Path: "updatedAt", Value: updatedAt},
		}); err != nil {
			return err
		}
		result = workItemFromDocument(id, doc)
		return nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}
	return result, nil
}

func workItemFromDocument(id string, doc workItemDocument) domain.WorkItem {
	return domain.WorkItem{
		ID:                id,
		Title:             doc.Title,
		Hours:             doc.Hours,
		TotalDays:         doc.TotalDays,
		Status:            domain.WorkItemStatus(doc.Status),
		Priority:          doc.Priority,
		MaterialsRequired: doc.MaterialsRequired,
		MaterialsReady:    doc.MaterialsReady,
		DesignRequired:    doc.DesignRequired,
		DesignReady:       doc.DesignReady,
		StartDate:         doc.StartDate,
		EndDate:           doc.EndDate,
		VehicleArrival:    doc.VehicleArrival,
		UpdatedAt:         doc.UpdatedAt,
	}
}

func statusIn(status domain.WorkItemStatus, allowed []domain.WorkItemStatus) bool {
	for _, candidate := range allowed {
		if candidate == status {
			return true
		}
	}
	return false
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

func dateValue(t *time.Time) any {
	if t == nil {
		return firestore.Delete
	}
	return *t
}

var _ repositories.WorkItemRepository = (*WorkItemRepository)(nil)
