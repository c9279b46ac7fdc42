package sales

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the sales service.
type Service interface {
	RecordSale(ctx context.Context, input SaleInput) (*Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Transaction, error)
}
