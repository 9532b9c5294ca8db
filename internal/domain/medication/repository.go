// Package medication provides the medication store repository.
package medication

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

// Advisory lock key serializing medication identifier derivation.
const medicationIDLockKey = int64(1_728_002)

// Repository provides medication persistence over Postgres.
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

// Create inserts a medication with the next dense identifier and records the
// new-medication event in the outbox within the same transaction.
func (r *Repository) Create(ctx context.Context, name, description string) (int64, error) {
	if name == "" || description == "" {
		return 0, ErrMissingFields
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", medicationIDLockKey); err != nil {
		return 0, fmt.Errorf("acquire id lock: %w", err)
	}

	query := `
		INSERT INTO medications (medication_id, name, description)
		VALUES (
			(SELECT COALESCE(MAX(medication_id), 0) + 1 FROM medications),
			$1,
			$2
		)
		RETURNING medication_id
	`

	var medicationID int64
	if err := tx.QueryRow(ctx, query, name, description).Scan(&medicationID); err != nil {
		return 0, fmt.Errorf("insert medication: %w", err)
	}

	payload, err := json.Marshal(CreatedEvent{Name: name, Description: description})
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	entry := &postgres.OutboxEntry{
		AggregateID:   strconv.FormatInt(medicationID, 10),
		AggregateType: "Medication",
		EventType:     postgres.EventMedicationCreated,
		Payload:       payload,
		Queue:         rabbit.QueueNewMedication,
	}
	if err := postgres.WriteEntry(ctx, tx, entry); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("medication created", zap.Int64("medication_id", medicationID))
	return medicationID, nil
}

// Exists reports whether a medication with the given identifier exists.
func (r *Repository) Exists(ctx context.Context, medicationID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM medications WHERE medication_id = $1)", medicationID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check medication: %w", err)
	}
	return exists, nil
}

// List returns medications filtered by the optional predicates. Name and
// description match by substring, as the listing endpoint specifies.
func (r *Repository) List(ctx context.Context, f Filter) ([]Medication, error) {
	var sb strings.Builder
	sb.WriteString("SELECT medication_id, name, description FROM medications")

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.MedicationID != nil {
		conds = append(conds, "medication_id = "+arg(*f.MedicationID))
	}
	if f.Name != "" {
		conds = append(conds, "name LIKE "+arg("%"+f.Name+"%"))
	}
	if f.Description != "" {
		conds = append(conds, "description LIKE "+arg("%"+f.Description+"%"))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY medication_id")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	meds := make([]Medication, 0)
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.MedicationID, &m.Name, &m.Description); err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}
