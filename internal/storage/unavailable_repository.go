package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ventecrm/booking-engine/internal/model"
	"github.com/ventecrm/booking-engine/libs/db"
)

type UnavailableRepository struct {
	pool *db.Pool
}

func NewUnavailableRepository(pool *db.Pool) *UnavailableRepository {
	return &UnavailableRepository{pool: pool}
}

func (r *UnavailableRepository) Create(ctx context.Context, block model.UnavailableTime) (model.UnavailableTime, error) {
	block.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_unavailable_times (id, user_id, start_time, end_time, is_all_day, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, block.ID, block.UserID, block.StartTime, block.EndTime, block.IsAllDay, block.Reason).Scan(&block.CreatedAt)
	if err != nil {
		return model.UnavailableTime{}, err
	}
	return block, nil
}

// ListForRange returns blocks intersecting [from, to). All-day rows are
// matched with a one-day margin on either side so that timezone skew between
// stored timestamps and the host's local day never hides one; the caller
// decides whether an all-day row actually lands on the queried local date.
func (r *UnavailableRepository) ListForRange(ctx context.Context, userID string, from, to time.Time) ([]model.UnavailableTime, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id::text, start_time, end_time, is_all_day, COALESCE(reason, ''), created_at
		FROM user_unavailable_times
		WHERE user_id = $1
			AND ((NOT is_all_day AND end_time > $2 AND start_time < $3)
				OR (is_all_day AND start_time > $2 - interval '1 day' AND start_time < $3 + interval '1 day'))
		ORDER BY start_time ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func (r *UnavailableRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.UnavailableTime, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id::text, start_time, end_time, is_all_day, COALESCE(reason, ''), created_at
		FROM user_unavailable_times
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func (r *UnavailableRepository) Delete(ctx context.Context, userID, blockID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_unavailable_times
		WHERE user_id = $1 AND id = $2
	`, userID, blockID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanBlocks(rows pgx.Rows) ([]model.UnavailableTime, error) {
	var out []model.UnavailableTime
	for rows.Next() {
		var b model.UnavailableTime
		if err := rows.Scan(&b.ID, &b.UserID, &b.StartTime, &b.EndTime, &b.IsAllDay, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
