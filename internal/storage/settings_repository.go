package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ventecrm/booking-engine/internal/model"
	"github.com/ventecrm/booking-engine/libs/db"
)

type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// GetOrCreate returns the host's settings row, inserting defaults first if the
// host has none. ON CONFLICT DO NOTHING makes concurrent first queries for the
// same host converge on a single row.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, userID string, defaults model.CalendarSettings) (model.CalendarSettings, error) {
	hours, err := json.Marshal(defaults.WorkingHours)
	if err != nil {
		return model.CalendarSettings{}, fmt.Errorf("encode working hours: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_calendar_settings
			(user_id, timezone, working_hours, slot_duration_minutes, break_time_minutes, advance_booking_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, defaults.Timezone, hours, defaults.SlotDurationMinutes, defaults.BreakTimeMinutes, defaults.AdvanceBookingDays)
	if err != nil {
		return model.CalendarSettings{}, err
	}
	return r.get(ctx, userID)
}

func (r *SettingsRepository) Update(ctx context.Context, s model.CalendarSettings) (model.CalendarSettings, error) {
	hours, err := json.Marshal(s.WorkingHours)
	if err != nil {
		return model.CalendarSettings{}, fmt.Errorf("encode working hours: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_calendar_settings
			(user_id, timezone, working_hours, slot_duration_minutes, break_time_minutes, advance_booking_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
			working_hours = EXCLUDED.working_hours,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			break_time_minutes = EXCLUDED.break_time_minutes,
			advance_booking_days = EXCLUDED.advance_booking_days,
			updated_at = now()
	`, s.UserID, s.Timezone, hours, s.SlotDurationMinutes, s.BreakTimeMinutes, s.AdvanceBookingDays)
	if err != nil {
		return model.CalendarSettings{}, err
	}
	return r.get(ctx, s.UserID)
}

func (r *SettingsRepository) get(ctx context.Context, userID string) (model.CalendarSettings, error) {
	var s model.CalendarSettings
	var hours []byte
	err := r.pool.QueryRow(ctx, `
		SELECT user_id::text, timezone, working_hours, slot_duration_minutes, break_time_minutes, advance_booking_days, created_at, updated_at
		FROM user_calendar_settings
		WHERE user_id = $1
	`, userID).Scan(&s.UserID, &s.Timezone, &hours, &s.SlotDurationMinutes, &s.BreakTimeMinutes, &s.AdvanceBookingDays, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.CalendarSettings{}, err
	}
	if err := json.Unmarshal(hours, &s.WorkingHours); err != nil {
		return model.CalendarSettings{}, fmt.Errorf("decode working hours: %w", err)
	}
	return s, nil
}
