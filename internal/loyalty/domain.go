package loyalty

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrCustomerNotFound = errors.New("customer not found")

// Tier is a customer's loyalty classification, ordered bronze < silver < gold.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// Rank gives the strict ordering used by the upgrade ratchet.
// Unknown values rank below bronze so they can never shadow a real tier.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// MaxTier returns the higher-ranked of two tiers.
func MaxTier(a, b Tier) Tier {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// Thresholds holds the spend levels at which silver and gold are
// reached. Gold must exceed silver; config validation enforces that at
// load time, the classifier itself stays total.
type Thresholds struct {
	Silver decimal.Decimal
	Gold   decimal.Decimal
}

// ReconcilePolicy is the explicit configuration for one reconciliation
// run. CountOpenTabs decides whether transactions still open on a tab
// contribute to total spend.
type ReconcilePolicy struct {
	Thresholds    Thresholds
	CountOpenTabs bool
}

// ReconcileResult reports what a reconciliation run did.
type ReconcileResult struct {
	Updated    bool            `json:"updated"`
	Tier       Tier            `json:"tier"`
	TotalSpend decimal.Decimal `json:"total_spend"`
}

// Customer is the loyalty read model for one customer.
type Customer struct {
	ID            uuid.UUID       `json:"id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone,omitempty"`
	Tier          Tier            `json:"tier"`
	TotalSpend    decimal.Decimal `json:"total_spend"`
	LoyaltyPoints int             `json:"loyalty_points"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// SaleRecord is the slice of a sales transaction this service needs:
// the monetary total and whether the sale is still open on a tab.
type SaleRecord struct {
	ID     uuid.UUID       `json:"id"`
	Total  decimal.Decimal `json:"total"`
	Status string          `json:"status"`
}

// CustomerRegisteredEvent is published when a new customer is created.
type CustomerRegisteredEvent struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// CustomerProfileUpdatedEvent is published when a profile edit lands.
type CustomerProfileUpdatedEvent struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Tier Tier      `json:"tier"`
}

// CustomerTierUpgradedEvent is published when reconciliation promotes a
// customer. Downgrades are never published: the ratchet only moves up.
type CustomerTierUpgradedEvent struct {
	ID         uuid.UUID       `json:"id"`
	FromTier   Tier            `json:"from_tier"`
	ToTier     Tier            `json:"to_tier"`
	TotalSpend decimal.Decimal `json:"total_spend"`
}
