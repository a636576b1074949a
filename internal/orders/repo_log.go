package orders

import "context"

// LogRepo is the append-only store behind order_status_log.
type LogRepo struct{ DB DBTX }

func (r *LogRepo) Append(ctx context.Context, l StatusLog) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO order_status_log(order_id, old_status, new_status, created_at)
		VALUES ($1, $2, $3, $4) RETURNING log_id`,
		l.OrderID, l.OldStatus, l.NewStatus, l.CreatedAt).Scan(&id)
	return id, err
}

// List returns records newest first.
func (r *LogRepo) List(ctx context.Context, limit, offset int) ([]StatusLog, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT log_id, order_id, old_status, new_status, created_at
		FROM order_status_log ORDER BY log_id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StatusLog{}
	for rows.Next() {
		var l StatusLog
		if err := rows.Scan(&l.LogID, &l.OrderID, &l.OldStatus, &l.NewStatus, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Delete removes the given records and returns how many existed.
func (r *LogRepo) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM order_status_log WHERE log_id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
