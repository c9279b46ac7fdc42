package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"retailnexus/pkg/eventstore"
)

// EventAppender is the slice of the event store this service needs.
type EventAppender interface {
	Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []eventstore.Event) error
}

// service implements the Service interface.
type service struct {
	events EventAppender
	db     *sql.DB
}

// NewService creates a new products service instance.
func NewService(events EventAppender, db *sql.DB) Service {
	return &service{events: events, db: db}
}

// AddProduct creates a new active product.
func (s *service) AddProduct(ctx context.Context, sku, name, category string, price decimal.Decimal, stock int) (*Product, error) {
	id := uuid.New()

	eventData := ProductAddedEvent{
		ID:    id,
		SKU:   sku,
		Name:  name,
		Price: price,
		Stock: stock,
	}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := eventstore.Event{
		EventType: "ProductAdded",
		EventData: jsonData,
		Version:   1,
	}
	if err := s.events.Append(ctx, id, "product", 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	product := &Product{
		ID:            id,
		SKU:           sku,
		Name:          name,
		Category:      category,
		Price:         price,
		StockQuantity: stock,
		Status:        "active",
		Version:       1,
	}

	query := `
		INSERT INTO products (id, sku, name, category, price, stock_quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		product.ID, product.SKU, product.Name, product.Category,
		product.Price, product.StockQuantity, product.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update read model: %w", err)
	}

	return product, nil
}

// GetProduct retrieves a product by ID.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT id, sku, name, category, price, stock_quantity, status, version
		FROM products
		WHERE id = $1
	`
	product := &Product{}
	var price string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Category,
		&price,
		&product.StockQuantity,
		&product.Status,
		&product.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	product.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	return product, nil
}

// UpdateStock sets the stock on hand for a product. expectedVersion is
// the product version the caller observed when it read the stock level;
// the event appends at that version, so a writer racing on a stale read
// conflicts instead of clobbering the other writer's decrement.
func (s *service) UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedVersion int) error {
	if newStock < 0 {
		return fmt.Errorf("stock cannot be negative: %d", newStock)
	}

	eventData := ProductStockUpdatedEvent{
		ID:       id,
		NewStock: newStock,
	}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := eventstore.Event{
		EventType: "ProductStockUpdated",
		EventData: jsonData,
		Version:   expectedVersion + 1,
	}
	if err := s.events.Append(ctx, id, "product", expectedVersion, []eventstore.Event{event}); err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to append event: %w", err)
	}

	query := `
		UPDATE products
		SET stock_quantity = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`
	result, err := s.db.ExecContext(ctx, query, newStock, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update read model: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update read model: %w", err)
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

// RetireProduct pulls a product from sale.
func (s *service) RetireProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	eventData := ProductRetiredEvent{
		ID:     id,
		Status: "retired",
	}
	jsonData, err := json.Marshal(eventData)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := eventstore.Event{
		EventType: "ProductRetired",
		EventData: jsonData,
		Version:   product.Version + 1,
	}
	if err := s.events.Append(ctx, id, "product", product.Version, []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	query := `
		UPDATE products
		SET status = 'retired', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	_, err = s.db.ExecContext(ctx, query, id, product.Version)
	return err
}

// Search finds active products by name or category.
func (s *service) Search(ctx context.Context, query string) ([]*Product, error) {
	dbQuery := `
		SELECT id, sku, name, category, price, stock_quantity, status, version
		FROM products
		WHERE status = 'active'
		AND (to_tsvector('english', name) @@ plainto_tsquery('english', $1)
		OR to_tsvector('english', category) @@ plainto_tsquery('english', $1))
		LIMIT 10
	`
	rows, err := s.db.QueryContext(ctx, dbQuery, query)
	if err != nil {
		return nil, fmt.Errorf("product search failed: %w", err)
	}
	defer rows.Close()

	var results []*Product
	for rows.Next() {
		product := &Product{}
		var price string
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Category,
			&price,
			&product.StockQuantity,
			&product.Status,
			&product.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		product.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		results = append(results, product)
	}
	return results, rows.Err()
}
