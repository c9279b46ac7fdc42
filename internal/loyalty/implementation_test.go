package loyalty

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"retailnexus/pkg/eventstore"
)

type fakeEventStore struct {
	mu       sync.Mutex
	appended []eventstore.Event
	failNext error
}

func (f *fakeEventStore) Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.appended = append(f.appended, events...)
	return nil
}

type fakeCustomerStore struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*Customer
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{customers: make(map[uuid.UUID]*Customer)}
}

func (f *fakeCustomerStore) Insert(ctx context.Context, customer *Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *customer
	f.customers[customer.ID] = &clone
	return nil
}

func (f *fakeCustomerStore) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	clone := *customer
	return &clone, nil
}

func (f *fakeCustomerStore) UpdateProfile(ctx context.Context, customer *Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.customers[customer.ID]
	if !ok {
		return ErrCustomerNotFound
	}
	stored.Name = customer.Name
	stored.Phone = customer.Phone
	stored.Tier = customer.Tier
	stored.Version++
	return nil
}

func (f *fakeCustomerStore) ApplyTierUpgrade(ctx context.Context, id uuid.UUID, tier Tier, totalSpend decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.customers[id]
	if !ok {
		return false, nil
	}
	if stored.Tier.Rank() >= tier.Rank() {
		return false, nil
	}
	stored.Tier = tier
	stored.TotalSpend = totalSpend
	stored.Version++
	return true, nil
}

type fakeSales struct {
	records map[uuid.UUID][]SaleRecord
	err     error
}

func (f *fakeSales) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]SaleRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[customerID], nil
}

func defaultPolicy() ReconcilePolicy {
	return ReconcilePolicy{Thresholds: testThresholds(), CountOpenTabs: true}
}

func seedCustomer(store *fakeCustomerStore, tier Tier, spend string) *Customer {
	customer := &Customer{
		ID:         uuid.New(),
		Email:      "pat@example.com",
		Name:       "Pat",
		Tier:       tier,
		TotalSpend: decimal.RequireFromString(spend),
		Version:    1,
	}
	_ = store.Insert(context.Background(), customer)
	return customer
}

func sale(total string, status string) SaleRecord {
	return SaleRecord{ID: uuid.New(), Total: decimal.RequireFromString(total), Status: status}
}

func TestReconcilePromotesBronzeToSilver(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierBronze, "0")
	sales := &fakeSales{records: map[uuid.UUID][]SaleRecord{
		customer.ID: {sale("300", "completed"), sale("250", "completed")},
	}}
	events := &fakeEventStore{}
	svc := NewService(events, store, sales, zap.NewNop())

	result, err := svc.ReconcileCustomer(context.Background(), customer.ID, defaultPolicy())
	require.NoError(t, err)

	assert.True(t, result.Updated)
	assert.Equal(t, TierSilver, result.Tier)
	assert.True(t, result.TotalSpend.Equal(decimal.NewFromInt(550)), "total spend %s", result.TotalSpend)

	stored, err := store.Get(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, TierSilver, stored.Tier)
	assert.True(t, stored.TotalSpend.Equal(decimal.NewFromInt(550)))

	require.Len(t, events.appended, 1)
	assert.Equal(t, "CustomerTierUpgraded", events.appended[0].EventType)
}

func TestReconcileNeverDowngrades(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierGold, "3000")
	sales := &fakeSales{records: map[uuid.UUID][]SaleRecord{
		customer.ID: {sale("100", "completed")},
	}}
	events := &fakeEventStore{}
	svc := NewService(events, store, sales, zap.NewNop())

	result, err := svc.ReconcileCustomer(context.Background(), customer.ID, defaultPolicy())
	require.NoError(t, err)

	assert.False(t, result.Updated)
	assert.Equal(t, TierGold, result.Tier)

	stored, err := store.Get(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, TierGold, stored.Tier)
	assert.True(t, stored.TotalSpend.Equal(decimal.NewFromInt(3000)), "stored spend must be untouched")
	assert.Empty(t, events.appended, "no event on a non-upgrade")
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierBronze, "0")
	sales := &fakeSales{records: map[uuid.UUID][]SaleRecord{
		customer.ID: {sale("600", "completed")},
	}}
	events := &fakeEventStore{}
	svc := NewService(events, store, sales, zap.NewNop())

	first, err := svc.ReconcileCustomer(context.Background(), customer.ID, defaultPolicy())
	require.NoError(t, err)
	require.True(t, first.Updated)
	require.Equal(t, TierSilver, first.Tier)

	second, err := svc.ReconcileCustomer(context.Background(), customer.ID, defaultPolicy())
	require.NoError(t, err)
	assert.False(t, second.Updated)
	assert.Equal(t, TierSilver, second.Tier)
	assert.True(t, second.TotalSpend.Equal(first.TotalSpend))
	assert.Len(t, events.appended, 1, "only the first run writes")
}

func TestReconcileOpenTabPolicy(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierBronze, "0")
	sales := &fakeSales{records: map[uuid.UUID][]SaleRecord{
		customer.ID: {sale("400", "completed"), sale("300", "open")},
	}}
	svc := NewService(&fakeEventStore{}, store, sales, zap.NewNop())

	// Default policy counts open tabs: 700 total clears silver.
	result, err := svc.ReconcileCustomer(context.Background(), customer.ID, defaultPolicy())
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, TierSilver, result.Tier)

	// With open tabs excluded the same history stays at 400.
	store2 := newFakeCustomerStore()
	customer2 := seedCustomer(store2, TierBronze, "0")
	sales2 := &fakeSales{records: map[uuid.UUID][]SaleRecord{
		customer2.ID: {sale("400", "completed"), sale("300", "open")},
	}}
	svc2 := NewService(&fakeEventStore{}, store2, sales2, zap.NewNop())

	policy := defaultPolicy()
	policy.CountOpenTabs = false
	result2, err := svc2.ReconcileCustomer(context.Background(), customer2.ID, policy)
	require.NoError(t, err)
	assert.False(t, result2.Updated)
	assert.Equal(t, TierBronze, result2.Tier)
	assert.True(t, result2.TotalSpend.Equal(decimal.NewFromInt(400)))
}

func TestReconcileAbortsWhenTransactionFetchFails(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierBronze, "0")
	sales := &fakeSales{err: errors.New("sales service unavailable")}
	events := &fakeEventStore{}
	svc := NewService(events, store, sales, zap.NewNop())

	_, err := svc.ReconcileCustomer(context.Background(), customer.ID, defaultPolicy())
	require.Error(t, err)

	stored, err := store.Get(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, TierBronze, stored.Tier)
	assert.True(t, stored.TotalSpend.IsZero())
	assert.Empty(t, events.appended)
}

func TestReconcileAbortsWhenEventAppendFails(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierBronze, "0")
	sales := &fakeSales{records: map[uuid.UUID][]SaleRecord{
		customer.ID: {sale("2500", "completed")},
	}}
	events := &fakeEventStore{failNext: eventstore.ErrConcurrencyConflict}
	svc := NewService(events, store, sales, zap.NewNop())

	_, err := svc.ReconcileCustomer(context.Background(), customer.ID, defaultPolicy())
	require.Error(t, err)

	stored, getErr := store.Get(context.Background(), customer.ID)
	require.NoError(t, getErr)
	assert.Equal(t, TierBronze, stored.Tier, "read model untouched after failed append")
}

func TestReconcileUnknownCustomer(t *testing.T) {
	svc := NewService(&fakeEventStore{}, newFakeCustomerStore(), &fakeSales{}, zap.NewNop())

	_, err := svc.ReconcileCustomer(context.Background(), uuid.New(), defaultPolicy())
	require.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestManualTierCanRaiseButNotLower(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierSilver, "800")
	svc := NewService(&fakeEventStore{}, store, &fakeSales{}, zap.NewNop())

	// A manual bronze edit cannot drop a customer whose spend justifies silver.
	bronze := TierBronze
	updated, err := svc.UpdateCustomerProfile(context.Background(), customer.ID, "Pat", "", &bronze, testThresholds())
	require.NoError(t, err)
	assert.Equal(t, TierSilver, updated.Tier)

	// A manual gold edit raises past what spend justifies.
	gold := TierGold
	updated, err = svc.UpdateCustomerProfile(context.Background(), customer.ID, "Pat", "", &gold, testThresholds())
	require.NoError(t, err)
	assert.Equal(t, TierGold, updated.Tier)
}

func TestUpdateProfileRejectsUnknownTier(t *testing.T) {
	store := newFakeCustomerStore()
	customer := seedCustomer(store, TierBronze, "0")
	svc := NewService(&fakeEventStore{}, store, &fakeSales{}, zap.NewNop())

	bogus := Tier("platinum")
	_, err := svc.UpdateCustomerProfile(context.Background(), customer.ID, "Pat", "", &bogus, testThresholds())
	require.Error(t, err)
}

func TestRegisterCustomerStartsAtBronze(t *testing.T) {
	store := newFakeCustomerStore()
	events := &fakeEventStore{}
	svc := NewService(events, store, &fakeSales{}, zap.NewNop())

	customer, err := svc.RegisterCustomer(context.Background(), "sam@example.com", "Sam", "")
	require.NoError(t, err)

	assert.Equal(t, TierBronze, customer.Tier)
	assert.True(t, customer.TotalSpend.IsZero())
	require.Len(t, events.appended, 1)
	assert.Equal(t, "CustomerRegistered", events.appended[0].EventType)
}
