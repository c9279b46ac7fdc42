package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"retailnexus/internal/loyalty"
	"retailnexus/internal/sales"
)

// SalesClient calls the sales service. It satisfies the loyalty
// service's TransactionSource interface.
type SalesClient struct {
	baseURL string
	client  *breakerClient
}

func NewSalesClient(baseURL string) *SalesClient {
	return &SalesClient{baseURL: baseURL, client: newBreakerClient("sales")}
}

// ListByCustomer fetches the customer's full sales history and projects
// it down to what tier reconciliation needs.
func (c *SalesClient) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]loyalty.SaleRecord, error) {
	var txns []sales.Transaction
	status, err := c.client.getJSON(ctx, fmt.Sprintf("%s/sales/customer/%s", c.baseURL, customerID), &txns)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}

	records := make([]loyalty.SaleRecord, 0, len(txns))
	for _, txn := range txns {
		records = append(records, loyalty.SaleRecord{
			ID:     txn.ID,
			Total:  txn.Total,
			Status: txn.Status,
		})
	}
	return records, nil
}
