package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount           = errors.New("invalid amount: must be positive")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrPaymentExceedsBalance   = errors.New("payment exceeds current balance")
	ErrPartialPaymentsDisabled = errors.New("partial payments are disabled")
)

// EntryType distinguishes the two kinds of ledger entries. A charge
// raises the tab balance, a payment reduces it. Amounts are stored
// positive; the sign is implied by the type.
type EntryType string

const (
	EntryCharge  EntryType = "charge"
	EntryPayment EntryType = "payment"
)

// LedgerEntry is one immutable record of a balance-affecting event.
// Entries are append-only: never edited, never deleted.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	Type        EntryType       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SignedAmount is the entry's contribution to the wallet balance.
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Type == EntryPayment {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Wallet is a customer's running tab. CurrentBalance is a cache of the
// signed sum over the wallet's ledger entries and is re-derived from
// them on every mutation.
type Wallet struct {
	ID             uuid.UUID       `json:"id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	LastChargedAt  *time.Time      `json:"last_charged_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// Policy carries the externally configured tab rules.
type Policy struct {
	AllowPartialPayments bool
}

// WalletOpenedEvent is published when a customer's tab is first used.
type WalletOpenedEvent struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	CustomerID uuid.UUID `json:"customer_id"`
}

// TabChargedEvent is published when a sale is put on the tab.
type TabChargedEvent struct {
	WalletID    uuid.UUID       `json:"wallet_id"`
	EntryID     uuid.UUID       `json:"entry_id"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// TabChargeReversedEvent is published when a charge is backed out,
// e.g. when the sale that produced it failed to record.
type TabChargeReversedEvent struct {
	WalletID    uuid.UUID       `json:"wallet_id"`
	EntryID     uuid.UUID       `json:"entry_id"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// TabPaymentEvent is published for any payment against the tab.
type TabPaymentEvent struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	EntryID  uuid.UUID       `json:"entry_id"`
	Amount   decimal.Decimal `json:"amount"`
	Settled  bool            `json:"settled"`
}
