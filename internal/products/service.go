package products

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the interface for the products service.
type Service interface {
	AddProduct(ctx context.Context, sku, name, category string, price decimal.Decimal, stock int) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedVersion int) error
	RetireProduct(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]*Product, error)
}
