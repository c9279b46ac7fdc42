package sales

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"retailnexus/internal/products"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the sales endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sales", h.handleRecordSale)
	r.Get("/sales/{id}", h.handleGetTransaction)
	r.Get("/sales/customer/{customerID}", h.handleListByCustomer)
}

func writeSaleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrEmptySale),
		errors.Is(err, ErrCustomerRequired),
		errors.Is(err, ErrUnknownPayment):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, products.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var input SaleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	txn, err := h.service.RecordSale(r.Context(), input)
	if err != nil {
		writeSaleError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(txn)
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid transaction ID", http.StatusBadRequest)
		return
	}

	txn, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		writeSaleError(w, err)
		return
	}
	json.NewEncoder(w).Encode(txn)
}

func (h *Handler) handleListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		http.Error(w, "invalid customer ID", http.StatusBadRequest)
		return
	}

	txns, err := h.service.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeSaleError(w, err)
		return
	}
	if txns == nil {
		txns = []Transaction{}
	}
	json.NewEncoder(w).Encode(txns)
}
