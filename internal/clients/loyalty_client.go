package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"retailnexus/internal/loyalty"
)

// LoyaltyClient calls the loyalty service. It satisfies the sales
// service's CustomerDirectory and Reconciler interfaces.
type LoyaltyClient struct {
	baseURL string
	client  *breakerClient
}

func NewLoyaltyClient(baseURL string) *LoyaltyClient {
	return &LoyaltyClient{baseURL: baseURL, client: newBreakerClient("loyalty")}
}

func (c *LoyaltyClient) GetCustomer(ctx context.Context, id uuid.UUID) (*loyalty.Customer, error) {
	var customer loyalty.Customer
	status, err := c.client.getJSON(ctx, fmt.Sprintf("%s/customers/%s", c.baseURL, id), &customer)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, loyalty.ErrCustomerNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}
	return &customer, nil
}

func (c *LoyaltyClient) ReconcileCustomer(ctx context.Context, id uuid.UUID) error {
	resp, err := c.client.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/customers/%s/reconcile", c.baseURL, id), struct{}{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return loyalty.ErrCustomerNotFound
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
