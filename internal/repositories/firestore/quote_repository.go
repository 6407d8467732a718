package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/workshop-planner/api/internal/domain"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/repositories"
)

const quotesCollection = "quotes"

type quoteDocument struct {
	CustomerName string    `firestore:"customerName"`
	VehicleLabel string    `firestore:"vehicleLabel"`
	Status       string    `firestore:"status"`
	SentAt       time.Time `firestore:"sentAt"`
	FollowUpDays int       `firestore:"followUpDays"`
}

// QuoteRepository reads the quotes collection.
type QuoteRepository struct {
	docs *pfirestore.Collection[quoteDocument]
}

// NewQuoteRepository constructs a Firestore-backed quote repository.
func NewQuoteRepository(provider *pfirestore.Provider) (*QuoteRepository, error) {
	if provider == nil {
		return nil, errors.New("quote repository requires firestore provider")
	}
	return &QuoteRepository{
		docs: pfirestore.NewCollection[quoteDocument](provider, quotesCollection),
	}, nil
}

// ListByStatus returns quotes in any of statuses.
func (r *QuoteRepository) ListByStatus(ctx context.Context, statuses ...domain.QuoteStatus) ([]domain.Quote, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	snaps, err := r.docs.List(ctx, func(q firestore.Query) firestore.Query {
		if len(values) > 0 {
			q = q.Where("status", "in", values)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	quotes := make([]domain.Quote, 0, len(snaps))
	for _, doc := range snaps {
		quotes = append(quotes, domain.Quote{
			ID:           doc.ID,
			CustomerName: doc.Data.CustomerName,
			VehicleLabel: doc.Data.VehicleLabel,
			Status:       domain.QuoteStatus(doc.Data.Status),
			SentAt:       doc.Data.SentAt,
			FollowUpDays: doc.Data.FollowUpDays,
		})
	}
	return quotes, nil
}

var _ repositories.QuoteRepository = (*QuoteRepository)(nil)
