package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCustomerRequired    = errors.New("tab sales require a customer")
	ErrEmptySale           = errors.New("sale has no line items")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrUnknownPayment      = errors.New("unknown payment method")
)

const (
	StatusOpen      = "open"
	StatusCompleted = "completed"

	PaymentCash = "cash"
	PaymentCard = "card"
	PaymentTab  = "tab"
)

// LineItem is one product line on a sale. ProductID may be Nil for
// legacy rows imported before the catalog existed; such lines skip
// stock bookkeeping.
type LineItem struct {
	ProductID uuid.UUID       `json:"product_id,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal is the line's contribution to the sale total.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Transaction is one recorded sale. Tab sales stay open until the
// customer settles their wallet; cash and card sales complete at the
// register.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    *uuid.UUID      `json:"customer_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Items         []LineItem      `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	Version       int             `json:"version"`
}

// SaleInput is what the register submits for a new sale.
type SaleInput struct {
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	Items         []LineItem `json:"items"`
}

// SaleRecordedEvent is published when a sale is written.
type SaleRecordedEvent struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    *uuid.UUID      `json:"customer_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
}
