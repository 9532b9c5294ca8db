// Package order provides the order store repository.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/betteru/pharma-ops/internal/infrastructure/postgres"
	"github.com/betteru/pharma-ops/internal/infrastructure/rabbit"
)

// Advisory lock key serializing order identifier derivation.
const orderIDLockKey = int64(1_728_001)

// Repository provides order persistence over Postgres.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// CreatePending inserts a new pending order with the next dense identifier.
// The max+1 derivation and the insert run in one transaction under an
// advisory lock, so concurrent writers cannot observe the same maximum.
// The medication identifier arrives as an opaque wire token; a token that
// does not cast to an integer fails the insert.
func (r *Repository) CreatePending(ctx context.Context, medicationID string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", orderIDLockKey); err != nil {
		return 0, fmt.Errorf("acquire id lock: %w", err)
	}

	query := `
		INSERT INTO orders (order_id, medication_id, status)
		VALUES (
			(SELECT COALESCE(MAX(order_id), 0) + 1 FROM orders),
			$1::bigint,
			$2
		)
		RETURNING order_id
	`

	var orderID int64
	if err := tx.QueryRow(ctx, query, medicationID, StatusPending).Scan(&orderID); err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return orderID, nil
}

// Exists reports whether an order with the given identifier exists.
func (r *Repository) Exists(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)", orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order: %w", err)
	}
	return exists, nil
}

// Update applies the submitted field set and records the order-update event
// in the outbox within the same transaction. Nil fields leave the column
// unchanged; the status column is stored lower-case while the event payload
// carries the fields exactly as submitted.
func (r *Repository) Update(ctx context.Context, upd Update) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders SET
			medication_id = COALESCE($2, medication_id),
			status = COALESCE(LOWER($3), status),
			patient_id = COALESCE($4, patient_id)
		WHERE order_id = $1
	`

	tag, err := tx.Exec(ctx, query, upd.OrderID, upd.MedicationID, upd.Status, upd.PatientID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	payload, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	entry := &postgres.OutboxEntry{
		AggregateID:   strconv.FormatInt(upd.OrderID, 10),
		AggregateType: "Order",
		EventType:     postgres.EventOrderUpdated,
		Payload:       payload,
		Queue:         rabbit.QueueOrderUpdates,
	}
	if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("order updated", zap.Int64("order_id", upd.OrderID))
	return nil
}

// List returns orders joined with their medication name, filtered by the
// optional predicates.
func (r *Repository) List(ctx context.Context, f Filter) ([]Order, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT o.order_id, o.medication_id, m.name, o.status, o.patient_id
		FROM orders AS o
		JOIN medications AS m ON m.medication_id = o.medication_id
	`)

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.OrderID != nil {
		conds = append(conds, "o.order_id = "+arg(*f.OrderID))
	}
	if f.MedicationID != nil {
		conds = append(conds, "o.medication_id = "+arg(*f.MedicationID))
	}
	if f.Status != "" {
		conds = append(conds, "o.status = "+arg(strings.ToLower(f.Status)))
	}
	if f.PatientID != nil {
		conds = append(conds, "o.patient_id = "+arg(*f.PatientID))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY o.order_id")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.MedicationID, &o.MedicationName, &o.Status, &o.PatientID); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
