package wallet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service Service
	policy  Policy
}

func NewHandler(service Service, policy Policy) *Handler {
	return &Handler{service: service, policy: policy}
}

// Routes mounts the wallet endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/wallets/{customerID}", h.handleGetWallet)
	r.Get("/wallets/{customerID}/entries", h.handleListEntries)
	r.Post("/wallets/{customerID}/charges", h.handleCharge)
	r.Post("/wallets/{customerID}/payments", h.handlePay)
	r.Post("/wallets/{customerID}/reversals", h.handleReverse)
	r.Post("/wallets/{customerID}/settle", h.handleSettle)
}

func walletCustomerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		http.Error(w, "invalid customer ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeWalletError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrPartialPaymentsDisabled):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrPaymentExceedsBalance):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := walletCustomerID(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), id)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	json.NewEncoder(w).Encode(wallet)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := walletCustomerID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListEntries(r.Context(), id)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func (h *Handler) handleCharge(w http.ResponseWriter, r *http.Request) {
	id, ok := walletCustomerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		ReferenceID string          `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.service.Charge(r.Context(), id, req.Amount, req.Description, req.ReferenceID)
	if err != nil {
		writeWalletError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	id, ok := walletCustomerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.service.Pay(r.Context(), id, req.Amount, req.Description, h.policy)
	if err != nil {
		writeWalletError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	id, ok := walletCustomerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		ReferenceID string          `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.service.Reverse(r.Context(), id, req.Amount, req.ReferenceID)
	if err != nil {
		writeWalletError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, ok := walletCustomerID(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Settle(r.Context(), id)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	if entry == nil {
		// Nothing owed; settling a zero tab writes no entry.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}
