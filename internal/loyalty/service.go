package loyalty

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the loyalty service.
type Service interface {
	RegisterCustomer(ctx context.Context, email, name, phone string) (*Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
	UpdateCustomerProfile(ctx context.Context, id uuid.UUID, name, phone string, manualTier *Tier, thresholds Thresholds) (*Customer, error)
	ReconcileCustomer(ctx context.Context, id uuid.UUID, policy ReconcilePolicy) (ReconcileResult, error)
}
