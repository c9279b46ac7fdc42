package wallet

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

// Store is the persistence boundary for wallets and their ledgers.
type Store interface {
	GetByCustomer(ctx context.Context, customerID uuid.UUID) (*Wallet, error)
	Create(ctx context.Context, wallet *Wallet) error
	// AppendEntry writes the entry and re-derives the wallet's cached
	// balance from the full entry set inside one transaction, with the
	// wallet row locked. A payment that would push the balance negative
	// is rejected with ErrPaymentExceedsBalance; a payment that lands
	// the balance on zero stamps last_charged_at.
	AppendEntry(ctx context.Context, entry *LedgerEntry) (*Wallet, error)
	ListEntries(ctx context.Context, walletID uuid.UUID) ([]LedgerEntry, error)
}

// PostgresStore backs Store with the wallets and wallet_entries tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByCustomer(ctx context.Context, customerID uuid.UUID) (*Wallet, error) {
	query := `
		SELECT id, customer_id, current_balance, last_charged_at, created_at, updated_at, version
		FROM wallets
		WHERE customer_id = $1
	`
	return scanWallet(s.db.QueryRowContext(ctx, query, customerID))
}

func (s *PostgresStore) Create(ctx context.Context, wallet *Wallet) error {
	query := `
		INSERT INTO wallets (id, customer_id, current_balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
	`
	if _, err := s.db.ExecContext(ctx, query, wallet.ID, wallet.CustomerID); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendEntry(ctx context.Context, entry *LedgerEntry) (*Wallet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the wallet row so concurrent writers serialize instead of
	// racing the balance cache.
	var walletID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM wallets WHERE id = $1 FOR UPDATE
	`, entry.WalletID).Scan(&walletID)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_entries (id, wallet_id, entry_type, amount, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, entry.ID, entry.WalletID, entry.Type, entry.Amount, entry.Description, entry.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	// The balance is always the signed sum over the full ledger; the
	// cached column can never drift from it.
	var balanceStr string
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN entry_type = 'charge' THEN amount ELSE -amount END), 0)
		FROM wallet_entries
		WHERE wallet_id = $1
	`, entry.WalletID).Scan(&balanceStr)
	if err != nil {
		return nil, fmt.Errorf("derive balance: %w", err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}

	if balance.IsNegative() {
		return nil, ErrPaymentExceedsBalance
	}
	zeroed := entry.Type == EntryPayment && balance.IsZero()

	row := tx.QueryRowContext(ctx, `
		UPDATE wallets
		SET current_balance = $1,
		    last_charged_at = CASE WHEN $2 THEN NOW() ELSE last_charged_at END,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3
		RETURNING id, customer_id, current_balance, last_charged_at, created_at, updated_at, version
	`, balance, zeroed, entry.WalletID)

	wallet, err := scanWallet(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return wallet, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, walletID uuid.UUID) ([]LedgerEntry, error) {
	query := `
		SELECT id, wallet_id, entry_type, amount, description, reference_id, created_at
		FROM wallet_entries
		WHERE wallet_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var entry LedgerEntry
		var amount string
		err := rows.Scan(
			&entry.ID,
			&entry.WalletID,
			&entry.Type,
			&amount,
			&entry.Description,
			&entry.ReferenceID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse entry amount: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWallet(row rowScanner) (*Wallet, error) {
	wallet := &Wallet{}
	var balance string
	err := row.Scan(
		&wallet.ID,
		&wallet.CustomerID,
		&balance,
		&wallet.LastChargedAt,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
		&wallet.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	wallet.CurrentBalance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return wallet, nil
}
