package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the interface for the wallet service.
type Service interface {
	// Charge puts an amount on the customer's tab, creating the wallet
	// on first use.
	Charge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, referenceID string) (*LedgerEntry, error)
	// Pay records a partial payment against the tab. Only available
	// when the policy allows partial payments.
	Pay(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description string, policy Policy) (*LedgerEntry, error)
	// Reverse backs out a prior charge with an offsetting payment
	// entry. This is a correction, not a customer payment, so it is
	// not gated by the partial-payment policy.
	Reverse(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, referenceID string) (*LedgerEntry, error)
	// Settle pays off the entire balance, bringing it to exactly zero.
	// Settling an already-zero tab is a no-op and returns a nil entry.
	Settle(ctx context.Context, customerID uuid.UUID) (*LedgerEntry, error)
	GetWallet(ctx context.Context, customerID uuid.UUID) (*Wallet, error)
	ListEntries(ctx context.Context, customerID uuid.UUID) ([]LedgerEntry, error)
}
