package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/domain/medication"
	"github.com/betteru/pharma-ops/internal/observability/metrics"
)

// MedicationStore is the medication persistence surface used by the handler.
type MedicationStore interface {
	Create(ctx context.Context, name, description string) (int64, error)
	List(ctx context.Context, f medication.Filter) ([]medication.Medication, error)
}

// MedicationsHandler serves the medication listing and creation endpoints.
type MedicationsHandler struct {
	store   MedicationStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMedicationsHandler creates the medications handler. Metrics may be nil
// in tests.
func NewMedicationsHandler(store MedicationStore, m *metrics.Metrics, logger *zap.Logger) *MedicationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationsHandler{store: store, metrics: m, logger: logger}
}

// Routes returns the medications router.
func (h *MedicationsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	return r
}

// List handles GET /medications. Name and description filter by substring.
func (h *MedicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	var f medication.Filter
	var ok bool

	if f.MedicationID, ok = queryInt64(r, "medication_id"); !ok {
		respondMessage(w, "Invalid medication_id filter.", http.StatusBadRequest)
		return
	}
	f.Name = r.URL.Query().Get("name")
	f.Description = r.URL.Query().Get("description")

	meds, err := h.store.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list medications failed", zap.Error(err))
		respondMessage(w, "Server error, please try again later.", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{"medications": meds}, http.StatusOK)
}

type createMedicationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /medications. Both fields are required; the new
// identifier is derived inside the store and the creation event is recorded
// in the same transaction.
func (h *MedicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondMessage(w, "Required parameters not sent.", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Description == "" {
		respondMessage(w, "Required parameters not sent.", http.StatusBadRequest)
		return
	}

	medicationID, err := h.store.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, medication.ErrMissingFields) {
			respondMessage(w, "Required parameters not sent.", http.StatusBadRequest)
			return
		}
		h.logger.Error("medication create failed", zap.Error(err))
		respondMessage(w, "Server error, please try again later.", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.MedicationsCreated.Inc()
	}
	h.logger.Info("medication created",
		zap.Int64("medication_id", medicationID),
		zap.String("name", req.Name))
	respondMessage(w, "Medication Added.", http.StatusCreated)
}
