package storage

import (
	"context"

	"github.com/ventecrm/booking-engine/internal/model"
	"github.com/ventecrm/booking-engine/libs/db"
)

type MeetingTypeRepository struct {
	pool *db.Pool
}

func NewMeetingTypeRepository(pool *db.Pool) *MeetingTypeRepository {
	return &MeetingTypeRepository{pool: pool}
}

func (r *MeetingTypeRepository) Get(ctx context.Context, id string) (model.MeetingType, error) {
	var mt model.MeetingType
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, COALESCE(color_tag, ''), created_at
		FROM meeting_types
		WHERE id = $1
	`, id).Scan(&mt.ID, &mt.Name, &mt.DurationMinutes, &mt.ColorTag, &mt.CreatedAt)
	if err != nil {
		return model.MeetingType{}, err
	}
	return mt, nil
}

func (r *MeetingTypeRepository) List(ctx context.Context, limit int) ([]model.MeetingType, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, duration_minutes, COALESCE(color_tag, ''), created_at
		FROM meeting_types
		ORDER BY name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MeetingType
	for rows.Next() {
		var mt model.MeetingType
		if err := rows.Scan(&mt.ID, &mt.Name, &mt.DurationMinutes, &mt.ColorTag, &mt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
