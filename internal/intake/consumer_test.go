package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betteru/pharma-ops/internal/infrastructure/rabbit"
	"github.com/betteru/pharma-ops/internal/lookup"
)

type fakeStore struct {
	nextID int64
	err    error
	calls  []string
}

func (s *fakeStore) CreatePending(ctx context.Context, medicationID string) (int64, error) {
	s.calls = append(s.calls, medicationID)
	if s.err != nil {
		return 0, s.err
	}
	s.nextID++
	return s.nextID, nil
}

type fakeLookup struct {
	patient *lookup.Patient
	err     error
	asked   []string
}

func (l *fakeLookup) GetPatient(ctx context.Context, patientID string) (*lookup.Patient, error) {
	l.asked = append(l.asked, patientID)
	return l.patient, l.err
}

type fakeRequeuer struct {
	err    error
	queues []string
	counts []int
	bodies [][]byte
}

func (r *fakeRequeuer) Requeue(ctx context.Context, queue string, body []byte, retryCount int) error {
	if r.err != nil {
		return r.err
	}
	r.queues = append(r.queues, queue)
	r.counts = append(r.counts, retryCount)
	r.bodies = append(r.bodies, body)
	return nil
}

type fakeDelivery struct {
	body        []byte
	retryCount  int
	redelivered bool

	acks    int
	nacks   int
	rejects int
}

func (d *fakeDelivery) Body() []byte       { return d.body }
func (d *fakeDelivery) RetryCount() int    { return d.retryCount }
func (d *fakeDelivery) Redelivered() bool  { return d.redelivered }
func (d *fakeDelivery) Ack() error         { d.acks++; return nil }
func (d *fakeDelivery) NackRequeue() error { d.nacks++; return nil }
func (d *fakeDelivery) Reject() error      { d.rejects++; return nil }

func newTestConsumer(store *fakeStore, patients *fakeLookup, requeuer *fakeRequeuer) *Consumer {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	cfg.LookupTimeout = 100 * time.Millisecond
	return NewConsumer(store, patients, requeuer, cfg, nil, nil)
}

func TestHandleDeliveryCreatesOrderAndAcks(t *testing.T) {
	store := &fakeStore{}
	patients := &fakeLookup{patient: &lookup.Patient{PatientID: 42}}
	c := newTestConsumer(store, patients, &fakeRequeuer{})

	d := &fakeDelivery{body: []byte("7,42")}
	err := c.HandleDelivery(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, 1, d.acks)
	assert.Zero(t, d.nacks)
	assert.Zero(t, d.rejects)
	assert.Equal(t, []string{"7"}, store.calls)
	assert.Equal(t, []string{"42"}, patients.asked)
}

func TestHandleDeliveryMalformedPayloadRejected(t *testing.T) {
	for _, body := range []string{"", "7", "7,42,extra", ",42", "7,"} {
		t.Run(body, func(t *testing.T) {
			store := &fakeStore{}
			requeuer := &fakeRequeuer{}
			c := newTestConsumer(store, &fakeLookup{}, requeuer)

			d := &fakeDelivery{body: []byte(body)}
			err := c.HandleDelivery(context.Background(), d)

			require.NoError(t, err)
			assert.Equal(t, 1, d.rejects)
			assert.Zero(t, d.acks)
			assert.Zero(t, d.nacks)
			assert.Empty(t, store.calls)
			assert.Empty(t, requeuer.counts)
		})
	}
}

func TestHandleDeliveryStoreFailureRequeuesWithBumpedCounter(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	requeuer := &fakeRequeuer{}
	c := newTestConsumer(store, &fakeLookup{}, requeuer)

	d := &fakeDelivery{body: []byte("7,42"), retryCount: 1}
	err := c.HandleDelivery(context.Background(), d)

	require.Error(t, err)
	assert.Equal(t, []string{rabbit.QueueOrders}, requeuer.queues)
	assert.Equal(t, []int{2}, requeuer.counts)
	assert.Equal(t, [][]byte{[]byte("7,42")}, requeuer.bodies)
	// The original message is acked once the copy is requeued.
	assert.Equal(t, 1, d.acks)
	assert.Zero(t, d.rejects)
}

func TestHandleDeliveryStoreFailureAtRetryLimitDeadLetters(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	requeuer := &fakeRequeuer{}
	c := newTestConsumer(store, &fakeLookup{}, requeuer)

	d := &fakeDelivery{body: []byte("7,42"), retryCount: 3}
	err := c.HandleDelivery(context.Background(), d)

	require.Error(t, err)
	assert.Equal(t, 1, d.rejects)
	assert.Zero(t, d.acks)
	assert.Empty(t, requeuer.counts)
}

func TestHandleDeliveryRequeueFailureFallsBackToNack(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	requeuer := &fakeRequeuer{err: errors.New("broker gone")}
	c := newTestConsumer(store, &fakeLookup{}, requeuer)

	d := &fakeDelivery{body: []byte("7,42")}
	err := c.HandleDelivery(context.Background(), d)

	require.Error(t, err)
	assert.Equal(t, 1, d.nacks)
	assert.Zero(t, d.acks)
	assert.Zero(t, d.rejects)
}

func TestHandleDeliveryLookupFailureDoesNotAffectAck(t *testing.T) {
	store := &fakeStore{}
	patients := &fakeLookup{err: errors.New("service down")}
	c := newTestConsumer(store, patients, &fakeRequeuer{})

	d := &fakeDelivery{body: []byte("7,42")}
	err := c.HandleDelivery(context.Background(), d)

	require.NoError(t, err)
	assert.Equal(t, 1, d.acks)
	assert.Equal(t, []string{"42"}, patients.asked)
}

// Redelivery of the same payload creates a second order. There is no
// content-based dedup in the pipeline.
func TestHandleDeliveryDuplicateCreatesSecondOrder(t *testing.T) {
	store := &fakeStore{}
	c := newTestConsumer(store, &fakeLookup{}, &fakeRequeuer{})

	first := &fakeDelivery{body: []byte("7,42")}
	require.NoError(t, c.HandleDelivery(context.Background(), first))

	second := &fakeDelivery{body: []byte("7,42"), redelivered: true}
	require.NoError(t, c.HandleDelivery(context.Background(), second))

	assert.Equal(t, []string{"7", "7"}, store.calls)
	assert.Equal(t, int64(2), store.nextID)
	assert.Equal(t, 1, first.acks)
	assert.Equal(t, 1, second.acks)
}

func TestParsePayload(t *testing.T) {
	med, patient, err := parsePayload([]byte("12,9"))
	require.NoError(t, err)
	assert.Equal(t, "12", med)
	assert.Equal(t, "9", patient)

	// Tokens are opaque; validation happens at the store boundary.
	med, patient, err = parsePayload([]byte("abc,def"))
	require.NoError(t, err)
	assert.Equal(t, "abc", med)
	assert.Equal(t, "def", patient)

	_, _, err = parsePayload([]byte("12"))
	require.Error(t, err)
}
