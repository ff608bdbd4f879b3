package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/go-chi/chi/v5"
)

// AdminHandlers exposes the read-only saga query API grounded on
// AdminController.java — observability only, never an admin-driven control
// surface (no mutating endpoint is exposed here).
type AdminHandlers struct {
	repo domain.SagaRepository
}

func NewAdminHandlers(repo domain.SagaRepository) *AdminHandlers {
	return &AdminHandlers{repo: repo}
}

func (h *AdminHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/admin/sagas", func(r chi.Router) {
		r.Get("/", h.ListSagas)
		r.Get("/stats", h.SagaStats)
		r.Get("/{id}", h.GetSagaByID)
		r.Get("/order/{orderId}", h.GetSagaByOrderID)
	})
}

// ListSagas returns a page of sagas, newest first.
func (h *AdminHandlers) ListSagas(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	sagas, err := h.repo.FindAll(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sagas)
}

func (h *AdminHandlers) GetSagaByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	saga, err := h.repo.FindByID(r.Context(), models.ID(id))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if saga == nil {
		http.Error(w, "saga not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, saga)
}

func (h *AdminHandlers) GetSagaByOrderID(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	saga, err := h.repo.FindByOrderID(r.Context(), models.ID(orderID))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if saga == nil {
		http.Error(w, "saga not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, saga)
}

// sagaStatuses is every status the stats endpoint reports a count for,
// mirroring AdminController.getSagaStats's fixed key set.
var sagaStatuses = []domain.SagaStatus{
	domain.SagaStatusCreated,
	domain.SagaStatusPaymentProcessing,
	domain.SagaStatusPaymentCompleted,
	domain.SagaStatusInventoryProcessing,
	domain.SagaStatusInventoryCompleted,
	domain.SagaStatusShippingProcessing,
	domain.SagaStatusCompleted,
	domain.SagaStatusFailed,
	domain.SagaStatusCompensating,
	domain.SagaStatusCompensated,
}

func (h *AdminHandlers) SagaStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]int64, len(sagaStatuses))
	for _, status := range sagaStatuses {
		count, err := h.repo.CountByStatus(r.Context(), status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		stats[string(status)] = count
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
