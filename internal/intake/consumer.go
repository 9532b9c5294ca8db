// Package intake implements the asynchronous order-intake pipeline: it
// consumes order placement messages, creates pending orders transactionally,
// and acknowledges or dead-letters each message based on outcome.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/infrastructure/rabbit"
	"github.com/betteru/pharma-ops/internal/lookup"
	"github.com/betteru/pharma-ops/internal/observability/metrics"
)

// OrderStore creates pending orders from intake messages.
type OrderStore interface {
	CreatePending(ctx context.Context, medicationID string) (int64, error)
}

// PatientLookup is the best-effort diagnostic lookup issued after a
// successful intake acknowledgment.
type PatientLookup interface {
	GetPatient(ctx context.Context, patientID string) (*lookup.Patient, error)
}

// Requeuer republishes a payload with its retry counter.
type Requeuer interface {
	Requeue(ctx context.Context, queue string, body []byte, retryCount int) error
}

// Config holds intake pipeline configuration.
type Config struct {
	// MaxRetries bounds redelivery attempts for transient store failures;
	// beyond it the message goes to the dead-letter queue
	MaxRetries int
	// LookupTimeout bounds the post-acknowledgment patient lookup
	LookupTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    5,
		LookupTimeout: 3 * time.Second,
	}
}

// Consumer processes order intake messages one at a time.
type Consumer struct {
	store    OrderStore
	patients PatientLookup
	requeuer Requeuer
	config   Config
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewConsumer creates the intake consumer. Metrics may be nil in tests.
func NewConsumer(store OrderStore, patients PatientLookup, requeuer Requeuer, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		store:    store,
		patients: patients,
		requeuer: requeuer,
		config:   cfg,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("order-intake"),
	}
}

// HandleDelivery processes one intake message. The message is acknowledged,
// republished with a bumped retry counter, or rejected to the dead-letter
// queue; it is never left unresolved.
func (c *Consumer) HandleDelivery(ctx context.Context, d rabbit.Delivery) error {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "intake_handle",
		trace.WithAttributes(attribute.Int("retry_count", d.RetryCount())))
	defer span.End()
	defer func() {
		if c.metrics != nil {
			c.metrics.IntakeDuration.Observe(time.Since(start).Seconds())
		}
	}()

	medicationID, patientID, err := parsePayload(d.Body())
	if err != nil {
		// Requeueing a permanently malformed message would loop forever.
		c.logger.Error("malformed intake payload",
			zap.ByteString("body", d.Body()),
			zap.Error(err))
		span.RecordError(err)
		if c.metrics != nil {
			c.metrics.MalformedPayloads.Inc()
		}
		return d.Reject()
	}

	span.SetAttributes(
		attribute.String("medication_id", medicationID),
		attribute.String("patient_id", patientID),
	)

	orderID, err := c.store.CreatePending(ctx, medicationID)
	if err != nil {
		span.RecordError(err)
		return c.handleStoreFailure(ctx, d, err)
	}

	if err := d.Ack(); err != nil {
		// The order is committed. A lost ack means the broker redelivers
		// and a duplicate order is created; there is no content dedup.
		c.logger.Error("ack failed after commit",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return fmt.Errorf("ack: %w", err)
	}

	if c.metrics != nil {
		c.metrics.OrdersIngested.Inc()
	}
	c.logger.Info("order created",
		zap.Int64("order_id", orderID),
		zap.String("medication_id", medicationID),
		zap.String("patient_id", patientID))

	c.lookupPatient(ctx, orderID, patientID)
	return nil
}

// handleStoreFailure applies the bounded-retry policy for transient store
// failures.
func (c *Consumer) handleStoreFailure(ctx context.Context, d rabbit.Delivery, storeErr error) error {
	retries := d.RetryCount()

	if retries >= c.config.MaxRetries {
		c.logger.Error("intake message dead-lettered",
			zap.Int("retries", retries),
			zap.Error(storeErr))
		if c.metrics != nil {
			c.metrics.OrdersDeadLettered.Inc()
		}
		if err := d.Reject(); err != nil {
			return fmt.Errorf("reject: %w", err)
		}
		return storeErr
	}

	// Republish with a bumped counter and ack the original. If the
	// republish fails, fall back to nack-with-requeue so the message is
	// never lost.
	if err := c.requeuer.Requeue(ctx, rabbit.QueueOrders, d.Body(), retries+1); err != nil {
		c.logger.Warn("requeue publish failed, falling back to nack",
			zap.Error(err))
		if nackErr := d.NackRequeue(); nackErr != nil {
			return fmt.Errorf("nack: %w", nackErr)
		}
		return storeErr
	}

	if c.metrics != nil {
		c.metrics.OrdersRetried.Inc()
	}
	c.logger.Warn("intake insert failed, message requeued",
		zap.Int("retry", retries+1),
		zap.Error(storeErr))

	if err := d.Ack(); err != nil {
		return fmt.Errorf("ack after requeue: %w", err)
	}
	return storeErr
}

// lookupPatient performs the post-acknowledgment diagnostic lookup. Failure
// is logged and never affects the acknowledgment already sent.
func (c *Consumer) lookupPatient(ctx context.Context, orderID int64, patientID string) {
	if c.patients == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.LookupTimeout)
	defer cancel()

	patient, err := c.patients.GetPatient(ctx, patientID)
	if err != nil {
		if c.metrics != nil {
			c.metrics.LookupFailures.Inc()
		}
		c.logger.Warn("patient lookup failed",
			zap.Int64("order_id", orderID),
			zap.String("patient_id", patientID),
			zap.Error(err))
		return
	}
	if patient == nil {
		// The order persists regardless; the lookup is diagnostics only.
		c.logger.Warn("patient not found upstream",
			zap.Int64("order_id", orderID),
			zap.String("patient_id", patientID))
		return
	}

	c.logger.Info("patient lookup",
		zap.Int64("order_id", orderID),
		zap.Int64("patient_id", patient.PatientID))
}

// parsePayload splits an intake message into its medication and patient
// identifiers. Both are opaque tokens to the pipeline.
func parsePayload(body []byte) (medicationID, patientID string, err error) {
	parts := strings.Split(string(body), ",")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected 'medication_id,patient_id', got %d field(s)", len(parts))
	}
	return parts[0], parts[1], nil
}
