package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/domain/inventory"
)

// InventoryStore is the read-only inventory surface used by the handler.
type InventoryStore interface {
	List(ctx context.Context, f inventory.Filter) ([]inventory.Record, error)
}

// InventoryHandler serves the inventory listing endpoint.
type InventoryHandler struct {
	store  InventoryStore
	logger *zap.Logger
}

// NewInventoryHandler creates the inventory handler.
func NewInventoryHandler(store InventoryStore, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{store: store, logger: logger}
}

// Routes returns the inventory router.
func (h *InventoryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

// List handles GET /inventory. The timestamp filter matches by substring so
// a date prefix selects the whole day.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var f inventory.Filter
	var ok bool

	if f.InventoryID, ok = queryInt64(r, "inventory_id"); !ok {
		respondMessage(w, "Invalid inventory_id filter.", http.StatusBadRequest)
		return
	}
	if f.MedicationID, ok = queryInt64(r, "medication_id"); !ok {
		respondMessage(w, "Invalid medication_id filter.", http.StatusBadRequest)
		return
	}
	if f.Stock, ok = queryInt64(r, "stock"); !ok {
		respondMessage(w, "Invalid stock filter.", http.StatusBadRequest)
		return
	}
	f.LastUpdated = r.URL.Query().Get("last_updated")

	records, err := h.store.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list inventory failed", zap.Error(err))
		respondMessage(w, "Server error, please try again later.", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{"inventory": records}, http.StatusOK)
}
