package sales

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"retailnexus/internal/loyalty"
	"retailnexus/internal/products"
	"retailnexus/pkg/eventstore"
)

// EventAppender is the slice of the event store this service needs.
type EventAppender interface {
	Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error
}

// ProductCatalog exposes the product operations the checkout saga
// needs. The products service implements it over HTTP.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*products.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedVersion int) error
}

// CustomerDirectory validates that an attached customer exists.
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*loyalty.Customer, error)
}

// TabCharger puts a tab sale's total on the customer's wallet, and
// backs it out again when the sale fails after the charge landed.
type TabCharger interface {
	Charge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, referenceID string) error
	ReverseCharge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, referenceID string) error
}

// Reconciler triggers a loyalty recalculation after a sale lands.
type Reconciler interface {
	ReconcileCustomer(ctx context.Context, customerID uuid.UUID) error
}

// service implements the Service interface.
type service struct {
	events     EventAppender
	store      TransactionStore
	catalog    ProductCatalog
	customers  CustomerDirectory
	wallet     TabCharger
	reconciler Reconciler
	logger     *zap.Logger
}

// NewService creates a new sales service instance.
func NewService(events EventAppender, store TransactionStore, catalog ProductCatalog, customers CustomerDirectory, tabCharger TabCharger, reconciler Reconciler, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		events:     events,
		store:      store,
		catalog:    catalog,
		customers:  customers,
		wallet:     tabCharger,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RecordSale orchestrates the checkout saga: validate the customer,
// reserve stock (with compensation on later failure), charge the tab
// when the sale is put on one, then record the transaction.
func (s *service) RecordSale(ctx context.Context, input SaleInput) (*Transaction, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptySale
	}
	switch input.PaymentMethod {
	case PaymentCash, PaymentCard, PaymentTab:
	default:
		return nil, ErrUnknownPayment
	}
	if input.PaymentMethod == PaymentTab && input.CustomerID == nil {
		return nil, ErrCustomerRequired
	}

	// Step 1: validate the customer when one is attached.
	if input.CustomerID != nil {
		if _, err := s.customers.GetCustomer(ctx, *input.CustomerID); err != nil {
			return nil, fmt.Errorf("failed to get customer: %w", err)
		}
	}

	total := decimal.Zero
	for _, item := range input.Items {
		total = total.Add(item.Subtotal())
	}

	// Step 2: reserve stock per line item, remembering how to undo it.
	var compensations []func()
	compensate := func() {
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i]()
		}
	}

	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			continue
		}
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			compensate()
			return nil, fmt.Errorf("failed to get product: %w", err)
		}
		if product.StockQuantity < item.Quantity {
			compensate()
			return nil, fmt.Errorf("%w: product %s", ErrInsufficientStock, product.SKU)
		}
		// The decrement carries the version we just read. Another sale
		// racing on the same stock level conflicts here and aborts,
		// so the last unit can only be sold once.
		if err := s.catalog.UpdateStock(ctx, item.ProductID, product.StockQuantity-item.Quantity, product.Version); err != nil {
			compensate()
			return nil, fmt.Errorf("failed to update stock: %w", err)
		}

		productID := item.ProductID
		restoreTo := product.StockQuantity
		restoreVersion := product.Version + 1 // version after our decrement
		compensations = append(compensations, func() {
			s.logger.Warn("compensating failed sale: restoring stock",
				zap.String("product_id", productID.String()),
				zap.Int("stock", restoreTo),
			)
			if err := s.catalog.UpdateStock(ctx, productID, restoreTo, restoreVersion); err != nil {
				s.logger.Error("failed to restore stock", zap.Error(err))
			}
		})
	}

	txn := &Transaction{
		ID:            uuid.New(),
		CustomerID:    input.CustomerID,
		Total:         total,
		Status:        StatusCompleted,
		PaymentMethod: input.PaymentMethod,
		Items:         input.Items,
		CreatedAt:     time.Now(),
		Version:       1,
	}

	// Step 3: a tab sale charges the wallet and stays open until settled.
	// The charge joins the compensation chain: if the sale fails to
	// record, the customer must not end up owing for it.
	if input.PaymentMethod == PaymentTab {
		txn.Status = StatusOpen
		if err := s.wallet.Charge(ctx, *input.CustomerID, total, "sale on tab", txn.ID.String()); err != nil {
			compensate()
			return nil, fmt.Errorf("failed to charge tab: %w", err)
		}

		customerID := *input.CustomerID
		chargeRef := txn.ID.String()
		compensations = append(compensations, func() {
			s.logger.Warn("compensating failed sale: reversing tab charge",
				zap.String("customer_id", customerID.String()),
				zap.String("reference_id", chargeRef),
			)
			if err := s.wallet.ReverseCharge(ctx, customerID, total, chargeRef); err != nil {
				s.logger.Error("failed to reverse tab charge", zap.Error(err))
			}
		})
	}

	// Step 4: append the event, then the read model.
	eventData := SaleRecordedEvent{
		ID:            txn.ID,
		CustomerID:    txn.CustomerID,
		Total:         txn.Total,
		Status:        txn.Status,
		PaymentMethod: txn.PaymentMethod,
	}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		compensate()
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	event := eventstore.Event{
		EventType: "SaleRecorded",
		EventData: jsonData,
		Version:   1,
	}
	if err := s.events.Append(ctx, txn.ID, "transaction", 0, []eventstore.Event{event}); err != nil {
		compensate()
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := s.store.Insert(ctx, txn); err != nil {
		compensate()
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}

	// Step 5: nudge loyalty. The sale stands even if this fails.
	if txn.CustomerID != nil {
		if err := s.reconciler.ReconcileCustomer(ctx, *txn.CustomerID); err != nil {
			s.logger.Warn("loyalty reconciliation failed after sale",
				zap.String("customer_id", txn.CustomerID.String()),
				zap.Error(err),
			)
		}
	}

	return txn, nil
}

// GetTransaction retrieves one sale by ID.
func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// ListByCustomer returns a customer's full sales history.
func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Transaction, error) {
	return s.store.ListByCustomer(ctx, customerID)
}
