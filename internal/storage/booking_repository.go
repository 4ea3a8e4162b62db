package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ventecrm/booking-engine/internal/model"
	"github.com/ventecrm/booking-engine/internal/outbox"
	"github.com/ventecrm/booking-engine/libs/db"
)

const bookingColumns = `
	id::text, host_user_id::text, meeting_type_id::text,
	guest_name, COALESCE(guest_email, ''), COALESCE(client_id::text, ''), COALESCE(prospect_id::text, ''),
	start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

type BookingRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outboxRepo: outboxRepo}
}

// Insert writes the booking row and its booking.created.v1 outbox event in one
// transaction. An overlapping non-cancelled booking for the same host trips
// the bookings_no_overlap exclusion constraint; callers detect it with
// IsConflict.
func (r *BookingRepository) Insert(ctx context.Context, b model.Booking) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, host_user_id, meeting_type_id, guest_name, guest_email, client_id, prospect_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NULLIF($7, '')::uuid, $8, $9, $10)
		RETURNING created_at
	`, b.ID, b.HostUserID, b.MeetingTypeID, b.GuestName, b.GuestEmail, b.ClientID, b.ProspectID,
		b.StartTime, b.EndTime, b.Status).Scan(&b.CreatedAt)
	if err != nil {
		return model.Booking{}, err
	}

	if err := r.insertBookingEvent(ctx, tx, outbox.EventBookingCreated, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

// ListActive returns every non-cancelled booking for the host, the full set the
// write gate checks against. excludeID carves out the booking being
// rescheduled; pass "" otherwise.
func (r *BookingRepository) ListActive(ctx context.Context, hostUserID, excludeID string) ([]model.Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if excludeID != "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE host_user_id = $1 AND status <> 'cancelled' AND id <> $2
			ORDER BY start_time ASC
		`, hostUserID, excludeID)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE host_user_id = $1 AND status <> 'cancelled'
			ORDER BY start_time ASC
		`, hostUserID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListActiveInRange returns non-cancelled bookings intersecting [from, to).
func (r *BookingRepository) ListActiveInRange(ctx context.Context, hostUserID string, from, to time.Time, excludeID string) ([]model.Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if excludeID != "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE host_user_id = $1 AND status <> 'cancelled'
				AND start_time < $3 AND end_time > $2
				AND id <> $4
			ORDER BY start_time ASC
		`, hostUserID, from, to, excludeID)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE host_user_id = $1 AND status <> 'cancelled'
				AND start_time < $3 AND end_time > $2
			ORDER BY start_time ASC
		`, hostUserID, from, to)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostUserID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE host_user_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, hostUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// Update commits a reschedule: new interval (and possibly meeting type) plus a
// booking.rescheduled.v1 outbox event. The exclusion constraint still guards
// the new interval.
func (r *BookingRepository) Update(ctx context.Context, b model.Booking) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET meeting_type_id = $2,
			start_time = $3,
			end_time = $4
		WHERE id = $1 AND status <> 'cancelled'
	`, b.ID, b.MeetingTypeID, b.StartTime, b.EndTime)
	if err != nil {
		return model.Booking{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.Booking{}, pgx.ErrNoRows
	}

	if err := r.insertBookingEvent(ctx, tx, outbox.EventBookingRescheduled, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) Cancel(ctx context.Context, id, reason string) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1 AND status <> 'cancelled'
		RETURNING `+bookingColumns+`
	`, id, reason)
	b, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, err
	}

	if err := r.insertBookingEvent(ctx, tx, outbox.EventBookingCancelled, b); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// CancelFutureByHost cancels every confirmed booking starting after the cutoff
// for a deactivated host, emitting a single summary outbox event.
func (r *BookingRepository) CancelFutureByHost(ctx context.Context, hostUserID string, after time.Time, reason string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE host_user_id = $1 AND status <> 'cancelled' AND start_time > $2
	`, hostUserID, after, reason)
	if err != nil {
		return 0, err
	}
	count := tag.RowsAffected()
	if count == 0 {
		return 0, tx.Commit(ctx)
	}

	payload, err := json.Marshal(map[string]any{
		"host_user_id": hostUserID,
		"cancelled":    count,
		"reason":       reason,
	})
	if err != nil {
		return 0, err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "host",
		AggregateID:   hostUserID,
		EventType:     outbox.EventHostBookingsPurged,
		Payload:       payload,
	}); err != nil {
		return 0, err
	}
	return count, tx.Commit(ctx)
}

// InsertAnswers stores the free-form Q&A rows captured with a booking. Called
// after the booking transaction commits; the caller logs failures instead of
// surfacing them.
func (r *BookingRepository) InsertAnswers(ctx context.Context, bookingID string, answers []model.BookingAnswer) error {
	for _, a := range answers {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO booking_answers (booking_id, question, answer)
			VALUES ($1, $2, $3)
		`, bookingID, a.Question, a.Answer); err != nil {
			return err
		}
	}
	return nil
}

func (r *BookingRepository) insertBookingEvent(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id":      b.ID,
		"host_user_id":    b.HostUserID,
		"meeting_type_id": b.MeetingTypeID,
		"guest_name":      b.GuestName,
		"guest_email":     b.GuestEmail,
		"start_time":      b.StartTime.UTC().Format(time.RFC3339),
		"end_time":        b.EndTime.UTC().Format(time.RFC3339),
		"status":          b.Status,
	})
	if err != nil {
		return err
	}
	return r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.HostUserID,
		&b.MeetingTypeID,
		&b.GuestName,
		&b.GuestEmail,
		&b.ClientID,
		&b.ProspectID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
