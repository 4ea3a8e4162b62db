package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/ventecrm/booking-engine/libs/db"
)

type IdempotencyRecord struct {
	HostUserID      string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

// Completed reports whether a previous request with the same key already
// finished and stored its response.
func (r IdempotencyRecord) Completed() bool {
	return r.StatusCode > 0
}

type IdempotencyRepository struct {
	pool *db.Pool
}

func NewIdempotencyRepository(pool *db.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Claim registers an idempotency key for a host. It returns the stored record
// and whether the key already existed before this call.
func (r *IdempotencyRepository) Claim(ctx context.Context, hostUserID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.get(ctx, hostUserID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (host_user_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (host_user_id, idempotency_key) DO NOTHING
	`, hostUserID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.get(ctx, hostUserID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *IdempotencyRepository) Finalize(ctx context.Context, hostUserID, key, bookingID string, statusCode int, response []byte) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE host_user_id = $1 AND idempotency_key = $2
	`, hostUserID, key, bookingID, statusCode, response)
	return err
}

func (r *IdempotencyRepository) get(ctx context.Context, hostUserID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := r.pool.QueryRow(ctx, `
		SELECT host_user_id::text,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE host_user_id = $1 AND idempotency_key = $2
	`, hostUserID, key).Scan(
		&rec.HostUserID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
