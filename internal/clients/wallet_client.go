package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"retailnexus/internal/wallet"
)

// WalletClient calls the wallet service. It satisfies the sales
// service's TabCharger interface.
type WalletClient struct {
	baseURL string
	client  *breakerClient
}

func NewWalletClient(baseURL string) *WalletClient {
	return &WalletClient{baseURL: baseURL, client: newBreakerClient("wallet")}
}

func (c *WalletClient) Charge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, description, referenceID string) error {
	payload := struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		ReferenceID string          `json:"reference_id"`
	}{Amount: amount, Description: description, ReferenceID: referenceID}

	resp, err := c.client.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/wallets/%s/charges", c.baseURL, customerID), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusBadRequest:
		return wallet.ErrInvalidAmount
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func (c *WalletClient) ReverseCharge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, referenceID string) error {
	payload := struct {
		Amount      decimal.Decimal `json:"amount"`
		ReferenceID string          `json:"reference_id"`
	}{Amount: amount, ReferenceID: referenceID}

	resp, err := c.client.sendJSON(ctx, http.MethodPost, fmt.Sprintf("%s/wallets/%s/reversals", c.baseURL, customerID), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusNotFound:
		return wallet.ErrWalletNotFound
	case http.StatusBadRequest:
		return wallet.ErrInvalidAmount
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
