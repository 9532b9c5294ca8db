package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betteru/pharma-ops/internal/lookup"
)

type fakeDirectory struct {
	profile *lookup.Profile
	err     error
	asked   []string
}

func (d *fakeDirectory) Profile(ctx context.Context, patientID string) (*lookup.Profile, error) {
	d.asked = append(d.asked, patientID)
	if d.err != nil {
		return nil, d.err
	}
	return d.profile, nil
}

func getPatient(t *testing.T, h *PatientsHandler, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/"+id, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestGetPatientProfile(t *testing.T) {
	dir := &fakeDirectory{
		profile: &lookup.Profile{
			PatientID:      42,
			FirstName:      "Ada",
			LastName:       "Lovelace",
			MedicalHistory: "none",
			SSN:            "123-45-6789",
		},
	}
	h := NewPatientsHandler(dir, nil, nil)

	rec := getPatient(t, h, "42")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"42"}, dir.asked)

	var resp struct {
		Patient lookup.Profile `json:"patient"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Patient.PatientID)
	assert.Equal(t, "Ada", resp.Patient.FirstName)
}

func TestGetPatientInvalid(t *testing.T) {
	dir := &fakeDirectory{err: lookup.ErrInvalidPatient}
	h := NewPatientsHandler(dir, nil, nil)

	rec := getPatient(t, h, "99")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid patient!", messageOf(t, rec))
}

func TestGetPatientUpstreamFailure(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("connection refused")}
	h := NewPatientsHandler(dir, nil, nil)

	rec := getPatient(t, h, "42")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
