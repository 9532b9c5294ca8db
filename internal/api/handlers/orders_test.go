package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betteru/pharma-ops/internal/domain/order"
)

type fakeOrderStore struct {
	orders    map[int64]bool
	updateErr error
	updates   []order.Update
	listed    []order.Order
	lastList  order.Filter
}

func (s *fakeOrderStore) Exists(ctx context.Context, orderID int64) (bool, error) {
	return s.orders[orderID], nil
}

func (s *fakeOrderStore) Update(ctx context.Context, upd order.Update) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, upd)
	return nil
}

func (s *fakeOrderStore) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	s.lastList = f
	return s.listed, nil
}

type fakeMedicationChecker struct {
	medications map[int64]bool
}

func (c *fakeMedicationChecker) Exists(ctx context.Context, medicationID int64) (bool, error) {
	return c.medications[medicationID], nil
}

func patchOrder(t *testing.T, h *OrdersHandler, orderID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/"+orderID, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m.Message
}

func TestUpdateOrderEmptyFieldSet(t *testing.T) {
	store := &fakeOrderStore{orders: map[int64]bool{1: true}}
	h := NewOrdersHandler(store, &fakeMedicationChecker{}, nil, nil)

	for _, body := range []string{"{}", ""} {
		rec := patchOrder(t, h, "1", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Updated nothing.", messageOf(t, rec))
	}
	// The no-op never reaches the store.
	assert.Empty(t, store.updates)
}

func TestUpdateOrderUnknownOrder(t *testing.T) {
	store := &fakeOrderStore{orders: map[int64]bool{}}
	h := NewOrdersHandler(store, &fakeMedicationChecker{}, nil, nil)

	rec := patchOrder(t, h, "99", `{"status":"ready"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid Order ID.", messageOf(t, rec))
	assert.Empty(t, store.updates)
}

func TestUpdateOrderNonNumericID(t *testing.T) {
	h := NewOrdersHandler(&fakeOrderStore{}, &fakeMedicationChecker{}, nil, nil)

	rec := patchOrder(t, h, "abc", `{"status":"ready"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid Order ID.", messageOf(t, rec))
}

func TestUpdateOrderUnknownMedication(t *testing.T) {
	store := &fakeOrderStore{orders: map[int64]bool{1: true}}
	h := NewOrdersHandler(store, &fakeMedicationChecker{medications: map[int64]bool{}}, nil, nil)

	rec := patchOrder(t, h, "1", `{"medication_id":5}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Medication ID.", messageOf(t, rec))
	assert.Empty(t, store.updates)
}

func TestUpdateOrderInvalidStatus(t *testing.T) {
	store := &fakeOrderStore{orders: map[int64]bool{1: true}}
	h := NewOrdersHandler(store, &fakeMedicationChecker{}, nil, nil)

	rec := patchOrder(t, h, "1", `{"status":"shipped"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, messageOf(t, rec), "Invalid Status")
	assert.Empty(t, store.updates)
}

// The medication check runs before the status check, so a request failing
// both reports the medication problem.
func TestUpdateOrderValidationSequence(t *testing.T) {
	store := &fakeOrderStore{orders: map[int64]bool{1: true}}
	h := NewOrdersHandler(store, &fakeMedicationChecker{medications: map[int64]bool{}}, nil, nil)

	rec := patchOrder(t, h, "1", `{"medication_id":5,"status":"shipped"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Medication ID.", messageOf(t, rec))
}

func TestUpdateOrderSuccess(t *testing.T) {
	store := &fakeOrderStore{orders: map[int64]bool{1: true}}
	checker := &fakeMedicationChecker{medications: map[int64]bool{5: true}}
	h := NewOrdersHandler(store, checker, nil, nil)

	rec := patchOrder(t, h, "1", `{"medication_id":5,"status":"READY","patient_id":9}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order Updated.", messageOf(t, rec))

	require.Len(t, store.updates, 1)
	upd := store.updates[0]
	assert.Equal(t, int64(1), upd.OrderID)
	assert.Equal(t, int64(5), *upd.MedicationID)
	// The handler passes the status through as submitted; the store
	// normalizes the column and the event keeps the raw value.
	assert.Equal(t, "READY", *upd.Status)
	assert.Equal(t, int64(9), *upd.PatientID)
}

func TestUpdateOrderStoreFailure(t *testing.T) {
	store := &fakeOrderStore{
		orders:    map[int64]bool{1: true},
		updateErr: errors.New("tx aborted"),
	}
	h := NewOrdersHandler(store, &fakeMedicationChecker{}, nil, nil)

	rec := patchOrder(t, h, "1", `{"status":"ready"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListOrdersFilters(t *testing.T) {
	store := &fakeOrderStore{
		listed: []order.Order{{OrderID: 1, MedicationID: 2, Status: order.StatusPending}},
	}
	h := NewOrdersHandler(store, &fakeMedicationChecker{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?order_id=1&status=pending", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.lastList.OrderID)
	assert.Equal(t, int64(1), *store.lastList.OrderID)
	assert.Equal(t, "pending", store.lastList.Status)
	assert.Nil(t, store.lastList.MedicationID)

	var resp struct {
		Orders []order.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, int64(1), resp.Orders[0].OrderID)
}

func TestListOrdersBadFilter(t *testing.T) {
	h := NewOrdersHandler(&fakeOrderStore{}, &fakeMedicationChecker{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/?order_id=abc", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
