package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/domain/order"
	"github.com/betteru/pharma-ops/internal/observability/metrics"
)

// OrderStore is the order persistence surface used by the handler.
type OrderStore interface {
	Exists(ctx context.Context, orderID int64) (bool, error)
	Update(ctx context.Context, upd order.Update) error
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
}

// MedicationChecker validates medication references on order updates.
type MedicationChecker interface {
	Exists(ctx context.Context, medicationID int64) (bool, error)
}

// OrdersHandler serves the order listing and update endpoints.
type OrdersHandler struct {
	store       OrderStore
	medications MedicationChecker
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewOrdersHandler creates the orders handler. Metrics may be nil in tests.
func NewOrdersHandler(store OrderStore, medications MedicationChecker, m *metrics.Metrics, logger *zap.Logger) *OrdersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrdersHandler{
		store:       store,
		medications: medications,
		metrics:     m,
		logger:      logger,
	}
}

// Routes returns the orders router.
func (h *OrdersHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Patch("/{order_id}", h.Update)
	return r
}

// List handles GET /orders with optional exact-match filters.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	var f order.Filter
	var ok bool

	if f.OrderID, ok = queryInt64(r, "order_id"); !ok {
		respondMessage(w, "Invalid order_id filter.", http.StatusBadRequest)
		return
	}
	if f.MedicationID, ok = queryInt64(r, "medication_id"); !ok {
		respondMessage(w, "Invalid medication_id filter.", http.StatusBadRequest)
		return
	}
	if f.PatientID, ok = queryInt64(r, "patient_id"); !ok {
		respondMessage(w, "Invalid patient_id filter.", http.StatusBadRequest)
		return
	}
	f.Status = r.URL.Query().Get("status")

	orders, err := h.store.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list orders failed", zap.Error(err))
		respondMessage(w, "Server error, please try again later.", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{"orders": orders}, http.StatusOK)
}

// updateRequest is the PATCH body. Absent fields stay nil and leave the
// column untouched.
type updateRequest struct {
	MedicationID *int64  `json:"medication_id"`
	Status       *string `json:"status"`
	PatientID    *int64  `json:"patient_id"`
}

// Update handles PATCH /orders/{order_id}. Validation short-circuits in a
// fixed sequence, so a request failing an early check never reaches the
// later ones and never emits an event.
func (h *OrdersHandler) Update(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil {
		respondMessage(w, "Invalid Order ID.", http.StatusNotFound)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondMessage(w, "Invalid request body.", http.StatusBadRequest)
		return
	}

	upd := order.Update{
		OrderID:      orderID,
		MedicationID: req.MedicationID,
		Status:       req.Status,
		PatientID:    req.PatientID,
	}

	if upd.Empty() {
		respondMessage(w, "Updated nothing.", http.StatusOK)
		return
	}

	exists, err := h.store.Exists(r.Context(), orderID)
	if err != nil {
		h.logger.Error("order existence check failed", zap.Error(err))
		respondMessage(w, "Server error, please try again later.", http.StatusInternalServerError)
		return
	}
	if !exists {
		respondMessage(w, "Invalid Order ID.", http.StatusNotFound)
		return
	}

	if upd.MedicationID != nil {
		known, err := h.medications.Exists(r.Context(), *upd.MedicationID)
		if err != nil {
			h.logger.Error("medication existence check failed", zap.Error(err))
			respondMessage(w, "Server error, please try again later.", http.StatusInternalServerError)
			return
		}
		if !known {
			respondMessage(w, "Invalid Medication ID.", http.StatusBadRequest)
			return
		}
	}

	if upd.Status != nil {
		if _, err := order.ParseStatus(*upd.Status); err != nil {
			respondMessage(w, "Invalid Status. (must be 'accepted', 'rejected', 'pending', 'canceled', or 'ready')", http.StatusBadRequest)
			return
		}
	}

	if err := h.store.Update(r.Context(), upd); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondMessage(w, "Invalid Order ID.", http.StatusNotFound)
			return
		}
		h.logger.Error("order update failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		respondMessage(w, "Server error, please try again later.", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersUpdated.Inc()
	}
	h.logger.Info("order updated", zap.Int64("order_id", orderID))
	respondMessage(w, "Order Updated.", http.StatusOK)
}
