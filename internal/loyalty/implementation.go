package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"retailnexus/pkg/eventstore"
)

const saleStatusOpen = "open"

// service implements the Service interface.
type service struct {
	events      EventAppender
	customers   CustomerStore
	sales       TransactionSource
	logger      *zap.Logger
	rateLimiter *rate.Limiter
}

// NewService creates a new loyalty service instance.
func NewService(events EventAppender, customers CustomerStore, sales TransactionSource, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		events:      events,
		customers:   customers,
		sales:       sales,
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 registrations per minute
	}
}

// RegisterCustomer creates a new customer at bronze with zero spend.
func (s *service) RegisterCustomer(ctx context.Context, email, name, phone string) (*Customer, error) {
	if !s.rateLimiter.Allow() {
		return nil, fmt.Errorf("rate limit exceeded")
	}

	id := uuid.New()
	eventData := CustomerRegisteredEvent{
		ID:    id,
		Email: email,
		Name:  name,
	}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := eventstore.Event{
		EventType: "CustomerRegistered",
		EventData: jsonData,
		Version:   1,
	}
	if err := s.events.Append(ctx, id, "customer", 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	customer := &Customer{
		ID:         id,
		Email:      email,
		Name:       name,
		Phone:      phone,
		Tier:       TierBronze,
		TotalSpend: decimal.Zero,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		Version:    1,
	}
	if err := s.customers.Insert(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}

	return customer, nil
}

// GetCustomer retrieves a customer by ID.
func (s *service) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return s.customers.Get(ctx, id)
}

// UpdateCustomerProfile edits name and contact fields. A manually
// supplied tier can only raise the persisted tier: the final value is
// the higher of the manual choice and what spend alone would justify.
func (s *service) UpdateCustomerProfile(ctx context.Context, id uuid.UUID, name, phone string, manualTier *Tier, thresholds Thresholds) (*Customer, error) {
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tier := customer.Tier
	if manualTier != nil {
		if !manualTier.Valid() {
			return nil, fmt.Errorf("unknown tier %q", *manualTier)
		}
		calculated := Classify(customer.TotalSpend, thresholds)
		tier = MaxTier(*manualTier, calculated)
	}

	eventData := CustomerProfileUpdatedEvent{
		ID:   id,
		Name: name,
		Tier: tier,
	}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := eventstore.Event{
		EventType: "CustomerProfileUpdated",
		EventData: jsonData,
		Version:   customer.Version + 1,
	}
	if err := s.events.Append(ctx, id, "customer", customer.Version, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	customer.Name = name
	customer.Phone = phone
	customer.Tier = tier
	if err := s.customers.UpdateProfile(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}
	customer.Version++

	return customer, nil
}

// ReconcileCustomer recomputes total spend from the sales history and
// promotes the customer when the classified tier outranks the stored
// one. Demotions are never written: the tier is a one-way ratchet.
func (s *service) ReconcileCustomer(ctx context.Context, id uuid.UUID, policy ReconcilePolicy) (ReconcileResult, error) {
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return ReconcileResult{}, err
	}

	records, err := s.sales.ListByCustomer(ctx, id)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	total := decimal.Zero
	for _, record := range records {
		if !policy.CountOpenTabs && record.Status == saleStatusOpen {
			continue
		}
		total = total.Add(record.Total)
	}

	calculated := Classify(total, policy.Thresholds)
	if calculated.Rank() <= customer.Tier.Rank() {
		return ReconcileResult{Updated: false, Tier: customer.Tier, TotalSpend: total}, nil
	}

	eventData := CustomerTierUpgradedEvent{
		ID:         id,
		FromTier:   customer.Tier,
		ToTier:     calculated,
		TotalSpend: total,
	}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := eventstore.Event{
		EventType: "CustomerTierUpgraded",
		EventData: jsonData,
		Version:   customer.Version + 1,
	}
	if err := s.events.Append(ctx, id, "customer", customer.Version, []eventstore.Event{event}); err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to append event: %w", err)
	}

	applied, err := s.customers.ApplyTierUpgrade(ctx, id, calculated, total)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to update read model: %w", err)
	}
	if !applied {
		// A concurrent reconciliation already promoted this customer
		// to an equal or higher tier; report no change.
		return ReconcileResult{Updated: false, Tier: customer.Tier, TotalSpend: total}, nil
	}

	s.logger.Info("customer tier upgraded",
		zap.String("customer_id", id.String()),
		zap.String("from_tier", string(customer.Tier)),
		zap.String("to_tier", string(calculated)),
		zap.String("total_spend", total.String()),
	)

	return ReconcileResult{Updated: true, Tier: calculated, TotalSpend: total}, nil
}
