package loyalty

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
	policy  ReconcilePolicy
}

func NewHandler(service Service, policy ReconcilePolicy) *Handler {
	return &Handler{service: service, policy: policy}
}

// Routes mounts the loyalty endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/customers", h.handleRegisterCustomer)
	r.Get("/customers/{id}", h.handleGetCustomer)
	r.Put("/customers/{id}", h.handleUpdateCustomer)
	r.Post("/customers/{id}/reconcile", h.handleReconcileCustomer)
	r.Get("/customers/{id}/next-tier", h.handleNextTier)
}

func customerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid customer ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	customer, err := h.service.RegisterCustomer(r.Context(), req.Email, req.Name, req.Phone)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(customer)
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrCustomerNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(customer)
}

func (h *Handler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Tier  *Tier  `json:"tier,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	customer, err := h.service.UpdateCustomerProfile(r.Context(), id, req.Name, req.Phone, req.Tier, h.policy.Thresholds)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrCustomerNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(customer)
}

func (h *Handler) handleReconcileCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ReconcileCustomer(r.Context(), id, h.policy)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrCustomerNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleNextTier(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrCustomerNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	resp := struct {
		Tier            Tier   `json:"tier"`
		SpendToNextTier string `json:"spend_to_next_tier"`
	}{
		Tier:            customer.Tier,
		SpendToNextTier: SpendToNextTier(customer.TotalSpend, h.policy.Thresholds).String(),
	}
	json.NewEncoder(w).Encode(resp)
}
