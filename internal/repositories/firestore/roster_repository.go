package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/workshop-planner/api/internal/domain"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/repositories"
)

const employeesCollection = "employees"

type employeeDocument struct {
	Name        string  `firestore:"name"`
	Role        string  `firestore:"role"`
	Active      bool    `firestore:"active"`
	WeeklyHours float64 `firestore:"weeklyHours"`
}

// RosterRepository reads the employees collection.
type RosterRepository struct {
	docs *pfirestore.Collection[employeeDocument]
}

// NewRosterRepository constructs a Firestore-backed roster repository.
func NewRosterRepository(provider *pfirestore.Provider) (*RosterRepository, error) {
	if provider == nil {
		return nil, errors.New("roster repository requires firestore provider")
	}
	return &RosterRepository{
		docs: pfirestore.NewCollection[employeeDocument](provider, employeesCollection),
	}, nil
}

// ListActive returns the active employees ordered by document id.
func (r *RosterRepository) ListActive(ctx context.Context) ([]domain.RosterEntry, error) {
	snaps, err := r.docs.List(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("active", "==", true).OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	entries := make([]domain.RosterEntry, 0, len(snaps))
	for _, doc := range snaps {
		entries = append(entries, domain.RosterEntry{
			ID:          doc.ID,
			Name:        doc.Data.Name,
			Role:        doc.Data.Role,
			Active:      doc.Data.Active,
			WeeklyHours: doc.Data.WeeklyHours,
		})
	}
	return entries, nil
}

var _ repositories.RosterRepository = (*RosterRepository)(nil)
