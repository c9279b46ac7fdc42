package sales

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

	"retailnexus/internal/loyalty"
	"retailnexus/internal/products"
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

type fakeTxnStore struct {
	mu         sync.Mutex
	txns       map[uuid.UUID]*Transaction
	failInsert error
}

func newFakeTxnStore() *fakeTxnStore {
	return &fakeTxnStore{txns: make(map[uuid.UUID]*Transaction)}
}

func (f *fakeTxnStore) Insert(ctx context.Context, txn *Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return f.failInsert
	}
	clone := *txn
	f.txns[txn.ID] = &clone
	return nil
}

func (f *fakeTxnStore) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	clone := *txn
	return &clone, nil
}

func (f *fakeTxnStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Transaction
	for _, txn := range f.txns {
		if txn.CustomerID != nil && *txn.CustomerID == customerID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

// fakeCatalog mirrors the products service's optimistic concurrency: a
// stock update carrying a stale version is rejected.
type fakeCatalog struct {
	mu           sync.Mutex
	stock        map[uuid.UUID]*products.Product
	frozen       map[uuid.UUID]products.Product // reads serve this snapshot when set
	failUpdateOn uuid.UUID                      // UpdateStock fails for this product
	updates      int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		stock:  make(map[uuid.UUID]*products.Product),
		frozen: make(map[uuid.UUID]products.Product),
	}
}

func (f *fakeCatalog) add(sku string, quantity int) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.stock[id] = &products.Product{ID: id, SKU: sku, StockQuantity: quantity, Version: 1}
	return id
}

// freezeReads pins GetProduct to the product's current state, so every
// caller sees the same stale stock level and version.
func (f *fakeCatalog) freezeReads(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frozen[id] = *f.stock[id]
}

func (f *fakeCatalog) quantity(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id].StockQuantity
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*products.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snapshot, ok := f.frozen[id]; ok {
		return &snapshot, nil
	}
	product, ok := f.stock[id]
	if !ok {
		return nil, products.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (f *fakeCatalog) UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.failUpdateOn {
		return errors.New("catalog unavailable")
	}
	product, ok := f.stock[id]
	if !ok {
		return products.ErrProductNotFound
	}
	if product.Version != expectedVersion {
		return products.ErrVersionConflict
	}
	f.updates++
	product.StockQuantity = newStock
	product.Version++
	return nil
}

type fakeDirectory struct {
	known map[uuid.UUID]bool
}

func (f *fakeDirectory) GetCustomer(ctx context.Context, id uuid.UUID) (*loyalty.Customer, error) {
	if !f.known[id] {
		return nil, loyalty.ErrCustomerNotFound
	}
	return &loyalty.Customer{ID: id, Tier: loyalty.TierBronze}, nil
}

type tabCharge struct {
	customerID  uuid.UUID
	amount      decimal.Decimal
	referenceID string
}

type fakeTabCharger struct {
	charges   []tabCharge
	reversals []tabCharge
	failNext  error
}

func (f *fakeTabCharger) Charge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, referenceID string) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.charges = append(f.charges, tabCharge{customerID: customerID, amount: amount, referenceID: referenceID})
	return nil
}

func (f *fakeTabCharger) ReverseCharge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, referenceID string) error {
	f.reversals = append(f.reversals, tabCharge{customerID: customerID, amount: amount, referenceID: referenceID})
	return nil
}

// outstanding is the net amount charged and not reversed.
func (f *fakeTabCharger) outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, c := range f.charges {
		total = total.Add(c.amount)
	}
	for _, r := range f.reversals {
		total = total.Sub(r.amount)
	}
	return total
}

type fakeReconciler struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeReconciler) ReconcileCustomer(ctx context.Context, customerID uuid.UUID) error {
	f.calls = append(f.calls, customerID)
	return f.err
}

type saleFixture struct {
	events     *fakeEventStore
	store      *fakeTxnStore
	catalog    *fakeCatalog
	directory  *fakeDirectory
	wallet     *fakeTabCharger
	reconciler *fakeReconciler
	svc        Service
}

func newSaleFixture() *saleFixture {
	f := &saleFixture{
		events:     &fakeEventStore{},
		store:      newFakeTxnStore(),
		catalog:    newFakeCatalog(),
		directory:  &fakeDirectory{known: make(map[uuid.UUID]bool)},
		wallet:     &fakeTabCharger{},
		reconciler: &fakeReconciler{},
	}
	f.svc = NewService(f.events, f.store, f.catalog, f.directory, f.wallet, f.reconciler, zap.NewNop())
	return f
}

func (f *saleFixture) knownCustomer() uuid.UUID {
	id := uuid.New()
	f.directory.known[id] = true
	return id
}

func line(productID uuid.UUID, quantity int, price string) LineItem {
	return LineItem{ProductID: productID, Name: "item", Quantity: quantity, UnitPrice: decimal.RequireFromString(price)}
}

func TestRecordSaleCashCompletesAndDecrementsStock(t *testing.T) {
	f := newSaleFixture()
	productID := f.catalog.add("ESP-01", 10)

	txn, err := f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []LineItem{line(productID, 2, "3.50"), {Name: "bag fee", Quantity: 1, UnitPrice: decimal.RequireFromString("0.10")}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, txn.Status)
	assert.True(t, txn.Total.Equal(decimal.RequireFromString("7.10")), "total %s", txn.Total)
	assert.Equal(t, 8, f.catalog.quantity(productID))

	require.Len(t, f.events.appended, 1)
	assert.Equal(t, "SaleRecorded", f.events.appended[0].EventType)

	stored, err := f.store.Get(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Empty(t, f.reconciler.calls, "anonymous sale triggers no reconciliation")
}

func TestRecordSaleValidation(t *testing.T) {
	f := newSaleFixture()

	_, err := f.svc.RecordSale(context.Background(), SaleInput{PaymentMethod: PaymentCash})
	assert.ErrorIs(t, err, ErrEmptySale)

	_, err = f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: "check",
		Items:         []LineItem{line(uuid.Nil, 1, "5")},
	})
	assert.ErrorIs(t, err, ErrUnknownPayment)

	_, err = f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentTab,
		Items:         []LineItem{line(uuid.Nil, 1, "5")},
	})
	assert.ErrorIs(t, err, ErrCustomerRequired)
}

func TestRecordSaleRejectsUnknownCustomer(t *testing.T) {
	f := newSaleFixture()
	stranger := uuid.New()

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		CustomerID:    &stranger,
		PaymentMethod: PaymentCard,
		Items:         []LineItem{line(uuid.Nil, 1, "5")},
	})
	require.ErrorIs(t, err, loyalty.ErrCustomerNotFound)
	assert.Empty(t, f.events.appended)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	f := newSaleFixture()
	productID := f.catalog.add("SCONE-01", 1)

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []LineItem{line(productID, 2, "2.25")},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 1, f.catalog.quantity(productID), "stock untouched")
	assert.Empty(t, f.events.appended)
	assert.Empty(t, f.store.txns)
}

func TestRecordSaleCompensatesStockWhenLaterLineFails(t *testing.T) {
	f := newSaleFixture()
	first := f.catalog.add("A", 5)
	second := f.catalog.add("B", 5)
	f.catalog.failUpdateOn = second // first decrement lands, second fails

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []LineItem{line(first, 2, "1"), line(second, 1, "1")},
	})
	require.Error(t, err)

	assert.Equal(t, 5, f.catalog.quantity(second))
	assert.Equal(t, 5, f.catalog.quantity(first), "first line restored")
}

func TestRecordSaleTabChargesWallet(t *testing.T) {
	f := newSaleFixture()
	customerID := f.knownCustomer()
	productID := f.catalog.add("LATTE-01", 10)

	txn, err := f.svc.RecordSale(context.Background(), SaleInput{
		CustomerID:    &customerID,
		PaymentMethod: PaymentTab,
		Items:         []LineItem{line(productID, 3, "4.00")},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, txn.Status)
	require.Len(t, f.wallet.charges, 1)
	charge := f.wallet.charges[0]
	assert.Equal(t, customerID, charge.customerID)
	assert.True(t, charge.amount.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, txn.ID.String(), charge.referenceID)

	require.Len(t, f.reconciler.calls, 1)
	assert.Equal(t, customerID, f.reconciler.calls[0])
}

func TestRecordSaleCompensatesWhenTabChargeFails(t *testing.T) {
	f := newSaleFixture()
	customerID := f.knownCustomer()
	productID := f.catalog.add("MUG-01", 4)
	f.wallet.failNext = errors.New("wallet unavailable")

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		CustomerID:    &customerID,
		PaymentMethod: PaymentTab,
		Items:         []LineItem{line(productID, 1, "9.00")},
	})
	require.Error(t, err)

	assert.Equal(t, 4, f.catalog.quantity(productID), "stock restored")
	assert.Empty(t, f.wallet.reversals, "nothing landed, nothing to reverse")
	assert.Empty(t, f.events.appended)
	assert.Empty(t, f.store.txns)
}

func TestRecordSaleReversesTabChargeWhenEventAppendFails(t *testing.T) {
	f := newSaleFixture()
	customerID := f.knownCustomer()
	productID := f.catalog.add("MUG-01", 5)
	f.events.failNext = eventstore.ErrConcurrencyConflict

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		CustomerID:    &customerID,
		PaymentMethod: PaymentTab,
		Items:         []LineItem{line(productID, 1, "42.00")},
	})
	require.Error(t, err)

	assert.Equal(t, 5, f.catalog.quantity(productID), "stock restored")
	assert.Empty(t, f.store.txns)

	// The customer must not owe for a sale that was never recorded.
	require.Len(t, f.wallet.charges, 1)
	require.Len(t, f.wallet.reversals, 1)
	assert.Equal(t, f.wallet.charges[0].referenceID, f.wallet.reversals[0].referenceID)
	assert.True(t, f.wallet.outstanding().IsZero(), "outstanding %s", f.wallet.outstanding())
}

func TestRecordSaleReversesTabChargeWhenInsertFails(t *testing.T) {
	f := newSaleFixture()
	customerID := f.knownCustomer()
	f.store.failInsert = errors.New("read model down")

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		CustomerID:    &customerID,
		PaymentMethod: PaymentTab,
		Items:         []LineItem{line(uuid.Nil, 1, "9.50")},
	})
	require.Error(t, err)

	require.Len(t, f.wallet.reversals, 1)
	assert.True(t, f.wallet.outstanding().IsZero())
}

func TestRecordSaleCompensatesWhenEventAppendFails(t *testing.T) {
	f := newSaleFixture()
	productID := f.catalog.add("TEE-01", 7)
	f.events.failNext = eventstore.ErrConcurrencyConflict

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCard,
		Items:         []LineItem{line(productID, 2, "15")},
	})
	require.Error(t, err)

	assert.Equal(t, 7, f.catalog.quantity(productID))
	assert.Empty(t, f.store.txns)
}

func TestRecordSaleStaleStockReadCannotOversell(t *testing.T) {
	f := newSaleFixture()
	productID := f.catalog.add("MUG-01", 1)
	// Both sales read the last unit at the same version, as two
	// registers racing would.
	f.catalog.freezeReads(productID)

	_, err := f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []LineItem{line(productID, 1, "18.00")},
	})
	require.NoError(t, err)

	_, err = f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []LineItem{line(productID, 1, "18.00")},
	})
	require.ErrorIs(t, err, products.ErrVersionConflict, "stale decrement must conflict, not double-sell")

	assert.Equal(t, 0, f.catalog.quantity(productID))
	require.Len(t, f.events.appended, 1, "one unit, one sale")
}

func TestRecordSaleSurvivesReconcileFailure(t *testing.T) {
	f := newSaleFixture()
	customerID := f.knownCustomer()
	f.reconciler.err = errors.New("loyalty down")

	txn, err := f.svc.RecordSale(context.Background(), SaleInput{
		CustomerID:    &customerID,
		PaymentMethod: PaymentCard,
		Items:         []LineItem{line(uuid.Nil, 1, "30")},
	})
	require.NoError(t, err, "reconciliation is best-effort")

	stored, err := f.store.Get(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestRecordSaleLegacyLinesSkipStock(t *testing.T) {
	f := newSaleFixture()

	txn, err := f.svc.RecordSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []LineItem{{Name: "imported row", Quantity: 2, UnitPrice: decimal.RequireFromString("6.00")}},
	})
	require.NoError(t, err)
	assert.True(t, txn.Total.Equal(decimal.NewFromInt(12)))
	assert.Zero(t, f.catalog.updates)
}
