package orders

import (
	"context"
	"errors"
	"github.com/jackc/pgx/v5"
)

// StatusRepo reads the status catalog (order_statuses).
type StatusRepo struct{ DB DBTX }

func (r *StatusRepo) Statuses(ctx context.Context) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT status FROM order_statuses ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Lookup returns the catalog entry for status; found=false if there is none.
func (r *StatusRepo) Lookup(ctx context.Context, status string) (StatusEntry, bool, error) {
	var e StatusEntry
	err := r.DB.QueryRow(ctx, `
		SELECT status, label, COALESCE(state, '') FROM order_statuses WHERE status=$1`, status).
		Scan(&e.Status, &e.Label, &e.State)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}
	return e, true, nil
}

// EnsureShippedStatus registers "shipped" under the processing state.
// It reports whether a row was inserted.
func (r *StatusRepo) EnsureShippedStatus(ctx context.Context) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO order_statuses(status, label, state) VALUES ($1, $2, $3)
		ON CONFLICT (status) DO NOTHING`, StatusShipped, "Shipped", StateProcessing)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
