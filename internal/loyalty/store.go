package loyalty

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"retailnexus/pkg/eventstore"
)

// EventAppender is the slice of the event store this service needs.
type EventAppender interface {
	Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error
}

// CustomerStore is the persistence boundary for the customer read model.
type CustomerStore interface {
	Insert(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id uuid.UUID) (*Customer, error)
	UpdateProfile(ctx context.Context, customer *Customer) error
	// ApplyTierUpgrade persists tier and total spend in one conditional
	// statement that only fires when the new tier outranks the stored
	// one. It reports whether a row was actually written.
	ApplyTierUpgrade(ctx context.Context, id uuid.UUID, tier Tier, totalSpend decimal.Decimal) (bool, error)
}

// TransactionSource provides read-only access to a customer's sales
// history. The sales service implements it over HTTP.
type TransactionSource interface {
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]SaleRecord, error)
}

// PostgresCustomerStore backs CustomerStore with the customers table.
type PostgresCustomerStore struct {
	db *sql.DB
}

func NewPostgresCustomerStore(db *sql.DB) *PostgresCustomerStore {
	return &PostgresCustomerStore{db: db}
}

func (s *PostgresCustomerStore) Insert(ctx context.Context, customer *Customer) error {
	query := `
		INSERT INTO customers (id, email, name, phone, tier, total_spend, loyalty_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := s.db.ExecContext(ctx, query,
		customer.ID,
		customer.Email,
		customer.Name,
		customer.Phone,
		customer.Tier,
		customer.TotalSpend,
		customer.LoyaltyPoints,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (s *PostgresCustomerStore) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	query := `
		SELECT id, email, name, phone, tier, total_spend, loyalty_points, created_at, updated_at, version
		FROM customers
		WHERE id = $1
	`
	customer := &Customer{}
	var spend string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID,
		&customer.Email,
		&customer.Name,
		&customer.Phone,
		&customer.Tier,
		&spend,
		&customer.LoyaltyPoints,
		&customer.CreatedAt,
		&customer.UpdatedAt,
		&customer.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	customer.TotalSpend, err = decimal.NewFromString(spend)
	if err != nil {
		return nil, fmt.Errorf("parse total spend: %w", err)
	}
	return customer, nil
}

func (s *PostgresCustomerStore) UpdateProfile(ctx context.Context, customer *Customer) error {
	query := `
		UPDATE customers
		SET name = $1, phone = $2, tier = $3, version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`
	res, err := s.db.ExecContext(ctx, query,
		customer.Name,
		customer.Phone,
		customer.Tier,
		customer.ID,
		customer.Version,
	)
	if err != nil {
		return fmt.Errorf("update customer profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update customer profile: %w", err)
	}
	if affected == 0 {
		return eventstore.ErrConcurrencyConflict
	}
	return nil
}

// ApplyTierUpgrade encodes the one-way ratchet in SQL so that two
// concurrent reconciliations cannot race a read-then-write: the row
// only changes when the stored tier ranks strictly below the new one.
func (s *PostgresCustomerStore) ApplyTierUpgrade(ctx context.Context, id uuid.UUID, tier Tier, totalSpend decimal.Decimal) (bool, error) {
	query := `
		UPDATE customers
		SET tier = $1, total_spend = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3
		AND (CASE tier WHEN 'bronze' THEN 1 WHEN 'silver' THEN 2 WHEN 'gold' THEN 3 ELSE 0 END) < $4
	`
	res, err := s.db.ExecContext(ctx, query, tier, totalSpend, id, tier.Rank())
	if err != nil {
		return false, fmt.Errorf("apply tier upgrade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply tier upgrade: %w", err)
	}
	return affected > 0, nil
}
