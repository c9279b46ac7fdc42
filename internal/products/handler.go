package products

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
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the product endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/products", h.handleAddProduct)
	r.Get("/products/search", h.handleSearch)
	r.Get("/products/{id}", h.handleGetProduct)
	r.Patch("/products/{id}/stock", h.handleUpdateStock)
	r.Delete("/products/{id}", h.handleRetireProduct)
	r.Post("/products/variants", h.handleGenerateVariants)
}

func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid product ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU      string          `json:"sku"`
		Name     string          `json:"name"`
		Category string          `json:"category"`
		Price    decimal.Decimal `json:"price"`
		Stock    int             `json:"stock_quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	product, err := h.service.AddProduct(r.Context(), req.SKU, req.Name, req.Category, req.Price, req.Stock)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(product)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrProductNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(product)
}

func (h *Handler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req struct {
		StockQuantity int `json:"stock_quantity"`
		Version       int `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateStock(r.Context(), id, req.StockQuantity, req.Version); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrProductNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrVersionConflict):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleRetireProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.service.RetireProduct(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrProductNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	results, err := h.service.Search(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(results)
}

func (h *Handler) handleGenerateVariants(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU     string          `json:"sku"`
		Options []VariantOption `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(GenerateVariants(req.SKU, req.Options))
}
