package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool (and pgx.Tx) the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct{ DB DBTX }

// SearchByIncrementID returns every order carrying incrementID, oldest first.
// increment_id is unique in practice, callers take the first row.
func (r *Repo) SearchByIncrementID(ctx context.Context, incrementID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, increment_id, status, state, customer_email, customer_name, store_id, updated_at
		FROM orders WHERE increment_id=$1 ORDER BY id`, incrementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.IncrementID, &o.Status, &o.State,
			&o.CustomerEmail, &o.CustomerName, &o.StoreID, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Save persists status and state together.
func (r *Repo) Save(ctx context.Context, o *Order) error {
	err := r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$2, state=$3, updated_at=now()
		WHERE id=$1 RETURNING updated_at`, o.ID, o.Status, o.State).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("save order %d: row vanished", o.ID)
	}
	if err != nil {
		return fmt.Errorf("save order %d: %w", o.ID, err)
	}
	return nil
}
