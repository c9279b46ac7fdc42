package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"retailnexus/internal/products"
)

// ProductsClient calls the products service. It satisfies the sales
// service's ProductCatalog interface.
type ProductsClient struct {
	baseURL string
	client  *breakerClient
}

func NewProductsClient(baseURL string) *ProductsClient {
	return &ProductsClient{baseURL: baseURL, client: newBreakerClient("products")}
}

func (c *ProductsClient) GetProduct(ctx context.Context, id uuid.UUID) (*products.Product, error) {
	var product products.Product
	status, err := c.client.getJSON(ctx, fmt.Sprintf("%s/products/%s", c.baseURL, id), &product)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, products.ErrProductNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}
	return &product, nil
}

func (c *ProductsClient) UpdateStock(ctx context.Context, id uuid.UUID, newStock, expectedVersion int) error {
	payload := struct {
		StockQuantity int `json:"stock_quantity"`
		Version       int `json:"version"`
	}{StockQuantity: newStock, Version: expectedVersion}

	resp, err := c.client.sendJSON(ctx, http.MethodPatch, fmt.Sprintf("%s/products/%s/stock", c.baseURL, id), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return products.ErrProductNotFound
	case http.StatusConflict:
		return products.ErrVersionConflict
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
