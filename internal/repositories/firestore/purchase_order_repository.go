package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/workshop-planner/api/internal/domain"
	pfirestore "github.com/workshop-planner/api/internal/platform/firestore"
	"github.com/workshop-planner/api/internal/repositories"
)

const purchaseOrdersCollection = "purchase_orders"

type purchaseOrderDocument struct {
	Supplier         string `firestore:"supplier"`
	Reference        string `firestore:"reference"`
	Status           string `firestore:"status"`
	ExpectedDelivery string `firestore:"expectedDelivery"`
	WorkItemID       string `firestore:"workItemId,omitempty"`
}

// PurchaseOrderRepository reads the purchase_orders collection.
type PurchaseOrderRepository struct {
	docs *pfirestore.Collection[purchaseOrderDocument]
}

// NewPurchaseOrderRepository constructs a Firestore-backed purchase order repository.
func NewPurchaseOrderRepository(provider *pfirestore.Provider) (*PurchaseOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("purchase order repository requires firestore provider")
	}
	return &PurchaseOrderRepository{
		docs: pfirestore.NewCollection[purchaseOrderDocument](provider, purchaseOrdersCollection),
	}, nil
}

// ListByStatus returns orders in any of statuses.
func (r *PurchaseOrderRepository) ListByStatus(ctx context.Context, statuses ...domain.PurchaseOrderStatus) ([]domain.PurchaseOrder, error) {
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
	orders := make([]domain.PurchaseOrder, 0, len(snaps))
	for _, doc := range snaps {
		orders = append(orders, domain.PurchaseOrder{
			ID:               doc.ID,
			Supplier:         doc.Data.Supplier,
			Reference:        doc.Data.Reference,
			Status:           domain.PurchaseOrderStatus(doc.Data.Status),
			ExpectedDelivery: doc.Data.ExpectedDelivery,
			WorkItemID:       doc.Data.WorkItemID,
		})
	}
	return orders, nil
}

var _ repositories.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)
