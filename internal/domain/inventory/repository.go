package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Repository provides read-only inventory access.
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

// List returns inventory rows filtered by the optional predicates.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	var sb strings.Builder
	sb.WriteString("SELECT inventory_id, medication_id, stock, last_updated FROM inventory")

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.InventoryID != nil {
		conds = append(conds, "inventory_id = "+arg(*f.InventoryID))
	}
	if f.MedicationID != nil {
		conds = append(conds, "medication_id = "+arg(*f.MedicationID))
	}
	if f.Stock != nil {
		conds = append(conds, "stock = "+arg(*f.Stock))
	}
	if f.LastUpdated != "" {
		conds = append(conds, "last_updated LIKE "+arg("%"+f.LastUpdated+"%"))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY inventory_id")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.InventoryID, &rec.MedicationID, &rec.Stock, &rec.LastUpdated); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
