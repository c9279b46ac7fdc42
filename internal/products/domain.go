package products

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVersionConflict = errors.New("product modified concurrently")
)

// Product is an item for sale at the register.
type Product struct {
	ID            uuid.UUID       `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// VariantOption is one customizable axis of a product, e.g. size or color.
type VariantOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// VariantCombination is one sellable combination of option values.
type VariantCombination struct {
	SKU       string            `json:"sku"`
	Selection map[string]string `json:"selection"`
}

// ProductAddedEvent is published when a new product enters the catalog.
type ProductAddedEvent struct {
	ID    uuid.UUID       `json:"id"`
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// ProductStockUpdatedEvent is published when stock on hand changes.
type ProductStockUpdatedEvent struct {
	ID       uuid.UUID `json:"id"`
	NewStock int       `json:"new_stock"`
}

// ProductRetiredEvent is published when a product is pulled from sale.
type ProductRetiredEvent struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}
