package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"retailnexus/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	events EventAppender
	store  Store
	logger *zap.Logger
}

// NewService creates a new wallet service instance.
func NewService(events EventAppender, store Store, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		events: events,
		store:  store,
		logger: logger,
	}
}

// Charge appends a charge entry to the customer's tab, opening the
// wallet on first use.
func (s *service) Charge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, referenceID string) (*LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.store.GetByCustomer(ctx, customerID)
	if errors.Is(err, ErrWalletNotFound) {
		wallet, err = s.openWallet(ctx, customerID)
	}
	if err != nil {
		return nil, err
	}

	entry := &LedgerEntry{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        EntryCharge,
		Amount:      amount,
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}

	eventData := TabChargedEvent{
		WalletID:    wallet.ID,
		EntryID:     entry.ID,
		Amount:      amount,
		ReferenceID: referenceID,
	}
	if err := s.appendEvent(ctx, wallet, "TabCharged", eventData); err != nil {
		return nil, err
	}

	if _, err := s.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}
	return entry, nil
}

// Pay records a partial payment against the tab.
func (s *service) Pay(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description string, policy Policy) (*LedgerEntry, error) {
	if !policy.AllowPartialPayments {
		return nil, ErrPartialPaymentsDisabled
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(wallet.CurrentBalance) {
		return nil, ErrPaymentExceedsBalance
	}

	return s.appendPayment(ctx, wallet, amount, description)
}

// Reverse backs a charge out of the tab. The ledger stays append-only:
// the original charge is never touched, an offsetting payment entry
// carrying the same reference ID cancels it.
func (s *service) Reverse(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, referenceID string) (*LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	entry := &LedgerEntry{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        EntryPayment,
		Amount:      amount,
		Description: "charge reversed",
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}

	eventData := TabChargeReversedEvent{
		WalletID:    wallet.ID,
		EntryID:     entry.ID,
		Amount:      amount,
		ReferenceID: referenceID,
	}
	if err := s.appendEvent(ctx, wallet, "TabChargeReversed", eventData); err != nil {
		return nil, err
	}

	if _, err := s.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}

	s.logger.Info("tab charge reversed",
		zap.String("customer_id", customerID.String()),
		zap.String("amount", amount.String()),
		zap.String("reference_id", referenceID),
	)
	return entry, nil
}

// Settle pays the entire balance in one payment entry, bringing the tab
// to exactly zero and stamping last_charged_at.
func (s *service) Settle(ctx context.Context, customerID uuid.UUID) (*LedgerEntry, error) {
	wallet, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if wallet.CurrentBalance.IsZero() {
		return nil, nil
	}

	entry, err := s.appendPayment(ctx, wallet, wallet.CurrentBalance, "tab settled")
	if err != nil {
		return nil, err
	}

	s.logger.Info("tab settled",
		zap.String("customer_id", customerID.String()),
		zap.String("amount", entry.Amount.String()),
	)
	return entry, nil
}

func (s *service) GetWallet(ctx context.Context, customerID uuid.UUID) (*Wallet, error) {
	return s.store.GetByCustomer(ctx, customerID)
}

func (s *service) ListEntries(ctx context.Context, customerID uuid.UUID) ([]LedgerEntry, error) {
	wallet, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, wallet.ID)
}

func (s *service) openWallet(ctx context.Context, customerID uuid.UUID) (*Wallet, error) {
	wallet := &Wallet{
		ID:             uuid.New(),
		CustomerID:     customerID,
		CurrentBalance: decimal.Zero,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	eventData := WalletOpenedEvent{WalletID: wallet.ID, CustomerID: customerID}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	event := eventstore.Event{
		EventType: "WalletOpened",
		EventData: jsonData,
		Version:   1,
	}
	if err := s.events.Append(ctx, wallet.ID, "wallet", 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := s.store.Create(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}
	wallet.Version = 1
	return wallet, nil
}

func (s *service) appendPayment(ctx context.Context, wallet *Wallet, amount decimal.Decimal, description string) (*LedgerEntry, error) {
	entry := &LedgerEntry{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        EntryPayment,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now(),
	}

	eventData := TabPaymentEvent{
		WalletID: wallet.ID,
		EntryID:  entry.ID,
		Amount:   amount,
		Settled:  amount.Equal(wallet.CurrentBalance),
	}
	if err := s.appendEvent(ctx, wallet, "TabPaymentRecorded", eventData); err != nil {
		return nil, err
	}

	if _, err := s.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}
	return entry, nil
}

// appendEvent writes one domain event at the wallet's next version.
// A concurrent writer trips the optimistic version check here, before
// any ledger row is written.
func (s *service) appendEvent(ctx context.Context, wallet *Wallet, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	event := eventstore.Event{
		EventType: eventType,
		EventData: jsonData,
		Version:   wallet.Version + 1,
	}
	if err := s.events.Append(ctx, wallet.ID, "wallet", wallet.Version, []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	wallet.Version++
	return nil
}
