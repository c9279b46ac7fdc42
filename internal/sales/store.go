package sales

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStore is the persistence boundary for recorded sales.
type TransactionStore interface {
	Insert(ctx context.Context, txn *Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Transaction, error)
}

// PostgresTransactionStore backs TransactionStore with the
// transactions table. Line items are stored as JSONB and decoded
// through ParseLineItems on the way out.
type PostgresTransactionStore struct {
	db *sql.DB
}

func NewPostgresTransactionStore(db *sql.DB) *PostgresTransactionStore {
	return &PostgresTransactionStore{db: db}
}

func (s *PostgresTransactionStore) Insert(ctx context.Context, txn *Transaction) error {
	items, err := json.Marshal(txn.Items)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}

	query := `
		INSERT INTO transactions (id, customer_id, total, status, payment_method, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err = s.db.ExecContext(ctx, query,
		txn.ID, txn.CustomerID, txn.Total, txn.Status, txn.PaymentMethod, items,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresTransactionStore) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := `
		SELECT id, customer_id, total, status, payment_method, items, created_at, version
		FROM transactions
		WHERE id = $1
	`
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	return txn, err
}

func (s *PostgresTransactionStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Transaction, error) {
	query := `
		SELECT id, customer_id, total, status, payment_method, items, created_at, version
		FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	txn := &Transaction{}
	var total string
	var items json.RawMessage
	err := row.Scan(
		&txn.ID,
		&txn.CustomerID,
		&total,
		&txn.Status,
		&txn.PaymentMethod,
		&items,
		&txn.CreatedAt,
		&txn.Version,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	txn.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	txn.Items, err = ParseLineItems(items)
	if err != nil {
		return nil, err
	}
	return txn, nil
}
