package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/lookup"
	"github.com/betteru/pharma-ops/internal/observability/metrics"
)

// PatientDirectory joins the upstream patient and user records.
type PatientDirectory interface {
	Profile(ctx context.Context, patientID string) (*lookup.Profile, error)
}

// PatientsHandler serves the patient profile endpoint.
type PatientsHandler struct {
	directory PatientDirectory
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPatientsHandler creates the patients handler. Metrics may be nil in
// tests.
func NewPatientsHandler(directory PatientDirectory, m *metrics.Metrics, logger *zap.Logger) *PatientsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientsHandler{directory: directory, metrics: m, logger: logger}
}

// Routes returns the patients router.
func (h *PatientsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{patient_id}", h.Get)
	return r
}

// Get handles GET /patient/{patient_id}. A person is valid only when both
// upstream services know them.
func (h *PatientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")

	profile, err := h.directory.Profile(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, lookup.ErrInvalidPatient) {
			respondMessage(w, "Invalid patient!", http.StatusBadRequest)
			return
		}
		if h.metrics != nil {
			h.metrics.LookupFailures.Inc()
		}
		h.logger.Error("patient lookup failed",
			zap.String("patient_id", patientID),
			zap.Error(err))
		respondMessage(w, "Server error, please try again later.", http.StatusBadGateway)
		return
	}

	respondJSON(w, map[string]interface{}{"patient": profile}, http.StatusOK)
}
