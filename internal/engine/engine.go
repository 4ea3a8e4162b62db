// Package engine implements the availability and booking conflict engine:
// settings resolution, slot generation, conflict filtering, and the
// double-booking gate on writes. All interval math is done in the host's
// declared IANA timezone.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ventecrm/booking-engine/internal/availability"
	"github.com/ventecrm/booking-engine/internal/model"
	"github.com/ventecrm/booking-engine/internal/storage"
)

type SettingsStore interface {
	GetOrCreate(ctx context.Context, userID string, defaults model.CalendarSettings) (model.CalendarSettings, error)
	Update(ctx context.Context, s model.CalendarSettings) (model.CalendarSettings, error)
}

type MeetingTypeStore interface {
	Get(ctx context.Context, id string) (model.MeetingType, error)
}

type BookingStore interface {
	Insert(ctx context.Context, b model.Booking) (model.Booking, error)
	Get(ctx context.Context, id string) (model.Booking, error)
	Update(ctx context.Context, b model.Booking) (model.Booking, error)
	Cancel(ctx context.Context, id, reason string) (model.Booking, error)
	ListActive(ctx context.Context, hostUserID, excludeID string) ([]model.Booking, error)
	ListActiveInRange(ctx context.Context, hostUserID string, from, to time.Time, excludeID string) ([]model.Booking, error)
	ListByHost(ctx context.Context, hostUserID string, limit int) ([]model.Booking, error)
	InsertAnswers(ctx context.Context, bookingID string, answers []model.BookingAnswer) error
}

type BlackoutStore interface {
	ListForRange(ctx context.Context, userID string, from, to time.Time) ([]model.UnavailableTime, error)
}

type Engine struct {
	settings  SettingsStore
	types     MeetingTypeStore
	bookings  BookingStore
	blackouts BlackoutStore
	logger    *slog.Logger
	nowFunc   func() time.Time
}

func New(settings SettingsStore, types MeetingTypeStore, bookings BookingStore, blackouts BlackoutStore, logger *slog.Logger) *Engine {
	return &Engine{
		settings:  settings,
		types:     types,
		bookings:  bookings,
		blackouts: blackouts,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// ResolveSettings loads the host's calendar settings, lazily creating the
// default row on first access. Repeated calls return the same persisted row.
func (e *Engine) ResolveSettings(ctx context.Context, userID string) (model.CalendarSettings, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.CalendarSettings{}, validationf("host user id is required")
	}
	s, err := e.settings.GetOrCreate(ctx, userID, model.DefaultCalendarSettings(userID))
	if err != nil {
		return model.CalendarSettings{}, fmt.Errorf("resolve settings for %s: %w", userID, err)
	}
	return s, nil
}

// UpdateSettings validates and persists an explicit settings update.
func (e *Engine) UpdateSettings(ctx context.Context, s model.CalendarSettings) (model.CalendarSettings, error) {
	s.UserID = strings.TrimSpace(s.UserID)
	if s.UserID == "" {
		return model.CalendarSettings{}, validationf("host user id is required")
	}
	if s.SlotDurationMinutes <= 0 {
		return model.CalendarSettings{}, validationf("slot duration must be positive")
	}
	if s.BreakTimeMinutes < 0 || s.AdvanceBookingDays < 0 {
		return model.CalendarSettings{}, validationf("break time and advance booking days must not be negative")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return model.CalendarSettings{}, validationf("unknown timezone %q", s.Timezone)
	}
	for _, key := range model.WeekdayKeys {
		sched, ok := s.WorkingHours[key]
		if !ok {
			return model.CalendarSettings{}, validationf("working hours missing %s", key)
		}
		if !sched.Enabled {
			continue
		}
		start, okStart := parseClock(sched.Start)
		end, okEnd := parseClock(sched.End)
		if !okStart || !okEnd {
			return model.CalendarSettings{}, validationf("%s has malformed hours", key)
		}
		if end <= start {
			return model.CalendarSettings{}, validationf("%s ends before it starts", key)
		}
	}
	updated, err := e.settings.Update(ctx, s)
	if err != nil {
		return model.CalendarSettings{}, fmt.Errorf("update settings for %s: %w", s.UserID, err)
	}
	return updated, nil
}

type AvailabilityQuery struct {
	HostUserID       string
	MeetingTypeID    string
	Date             string // YYYY-MM-DD
	ExcludeBookingID string // set when rescheduling in place
}

// Slot is a bookable candidate start time; End is Start plus the meeting type
// duration. Slots are derived on the fly and never persisted.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Availability returns the ordered open slots for one host-local day:
// generated candidates minus anything overlapping a booking or blackout. A
// disabled day, a fully booked day, or a date past the advance-booking horizon
// yields an empty result.
func (e *Engine) Availability(ctx context.Context, q AvailabilityQuery) ([]Slot, error) {
	host := strings.TrimSpace(q.HostUserID)
	meetingTypeID := strings.TrimSpace(q.MeetingTypeID)
	if host == "" || meetingTypeID == "" {
		return nil, validationf("host user id and meeting type id are required")
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(q.Date))
	if err != nil {
		return nil, validationf("date must be YYYY-MM-DD")
	}

	settings, err := e.ResolveSettings(ctx, host)
	if err != nil {
		return nil, err
	}
	mt, err := e.meetingType(ctx, meetingTypeID)
	if err != nil {
		return nil, err
	}

	loc := e.location(settings)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	nextDay := day.AddDate(0, 0, 1)
	now := e.nowFunc()

	if settings.AdvanceBookingDays > 0 {
		horizon := now.In(loc).AddDate(0, 0, settings.AdvanceBookingDays)
		if day.After(horizon) {
			return nil, nil
		}
	}

	sched, ok := settings.WorkingHours[model.WeekdayKey(day.Weekday())]
	if !ok || !sched.Enabled {
		return nil, nil
	}
	startOfDay, okStart := parseClock(sched.Start)
	endOfDay, okEnd := parseClock(sched.End)
	if !okStart || !okEnd {
		return nil, nil
	}
	windowStart := day.Add(startOfDay)
	windowEnd := day.Add(endOfDay)
	if !windowEnd.After(windowStart) {
		return nil, nil
	}

	duration := time.Duration(mt.DurationMinutes) * time.Minute
	step := time.Duration(settings.SlotDurationMinutes) * time.Minute
	candidates := availability.GenerateSlots(windowStart, windowEnd, step, duration)
	if len(candidates) == 0 {
		return nil, nil
	}

	busy, err := e.busyIntervals(ctx, host, day, nextDay, q.ExcludeBookingID)
	if err != nil {
		return nil, err
	}

	var upcoming []time.Time
	for _, t := range candidates {
		if t.Before(now) {
			continue
		}
		upcoming = append(upcoming, t)
	}
	open := availability.FilterAvailable(upcoming, duration, busy)
	slots := make([]Slot, 0, len(open))
	for _, t := range open {
		slots = append(slots, Slot{Start: t, End: t.Add(duration)})
	}
	return slots, nil
}

func (e *Engine) busyIntervals(ctx context.Context, host string, day, nextDay time.Time, excludeBookingID string) ([]availability.Interval, error) {
	bookings, err := e.bookings.ListActiveInRange(ctx, host, day, nextDay, strings.TrimSpace(excludeBookingID))
	if err != nil {
		return nil, fmt.Errorf("load bookings for %s: %w", host, err)
	}
	blocks, err := e.blackouts.ListForRange(ctx, host, day, nextDay)
	if err != nil {
		return nil, fmt.Errorf("load unavailable times for %s: %w", host, err)
	}

	busy := make([]availability.Interval, 0, len(bookings)+len(blocks))
	for _, b := range bookings {
		busy = append(busy, availability.Interval{Start: b.StartTime, End: b.EndTime})
	}
	loc := day.Location()
	for _, blk := range blocks {
		if blk.IsAllDay {
			// An all-day block covers the whole local day it falls on, whatever
			// its stored start/end say.
			if sameLocalDate(blk.StartTime.In(loc), day) {
				busy = append(busy, availability.Interval{Start: day, End: nextDay})
			}
			continue
		}
		busy = append(busy, availability.Interval{Start: blk.StartTime, End: blk.EndTime})
	}
	return busy, nil
}

type BookingRequest struct {
	HostUserID    string
	MeetingTypeID string
	StartTime     time.Time
	EndTime       time.Time // derived from the meeting type duration when zero
	GuestName     string
	GuestEmail    string
	ClientID      string
	ProspectID    string
	Answers       []model.BookingAnswer
}

// CreateBooking is the write-path gate: it re-checks the requested interval
// against the host's full non-cancelled booking set at commit time, then
// inserts. The database exclusion constraint backstops the read so two
// concurrent requests for the same slot cannot both land.
func (e *Engine) CreateBooking(ctx context.Context, req BookingRequest) (model.Booking, error) {
	host := strings.TrimSpace(req.HostUserID)
	meetingTypeID := strings.TrimSpace(req.MeetingTypeID)
	guestName := strings.TrimSpace(req.GuestName)
	switch {
	case host == "" || meetingTypeID == "":
		return model.Booking{}, validationf("host user id and meeting type id are required")
	case guestName == "":
		return model.Booking{}, validationf("guest name is required")
	case req.StartTime.IsZero():
		return model.Booking{}, validationf("start time is required")
	}

	settings, err := e.ResolveSettings(ctx, host)
	if err != nil {
		return model.Booking{}, err
	}
	mt, err := e.meetingType(ctx, meetingTypeID)
	if err != nil {
		return model.Booking{}, err
	}

	start := req.StartTime
	end := req.EndTime
	if end.IsZero() {
		end = start.Add(time.Duration(mt.DurationMinutes) * time.Minute)
	}
	if !end.After(start) {
		return model.Booking{}, validationf("end time must be after start time")
	}
	if err := e.checkHorizon(settings, start); err != nil {
		return model.Booking{}, err
	}

	conflicts, err := e.conflictingBookings(ctx, host, "", start, end)
	if err != nil {
		return model.Booking{}, err
	}
	if len(conflicts) > 0 {
		return model.Booking{}, &ConflictError{Conflicts: conflicts}
	}

	booking := model.Booking{
		ID:            uuid.NewString(),
		HostUserID:    host,
		MeetingTypeID: mt.ID,
		GuestName:     guestName,
		GuestEmail:    strings.TrimSpace(req.GuestEmail),
		ClientID:      strings.TrimSpace(req.ClientID),
		ProspectID:    strings.TrimSpace(req.ProspectID),
		StartTime:     start,
		EndTime:       end,
		Status:        model.BookingStatusConfirmed,
	}

	created, err := e.bookings.Insert(ctx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			// A concurrent insert won the slot between our read and this write.
			return model.Booking{}, &ConflictError{}
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	if len(req.Answers) > 0 {
		if err := e.bookings.InsertAnswers(ctx, created.ID, req.Answers); err != nil {
			// The booking is committed; answers are best-effort.
			e.logger.Warn("booking answers insert failed", "booking_id", created.ID, "err", err)
		}
	}
	return created, nil
}

type RescheduleRequest struct {
	BookingID     string
	MeetingTypeID string // optional; changing it re-derives the end time
	StartTime     time.Time
	EndTime       time.Time
}

// RescheduleBooking moves an existing booking, re-running the conflict gate
// with the booking's own interval excluded from the comparison set.
func (e *Engine) RescheduleBooking(ctx context.Context, req RescheduleRequest) (model.Booking, error) {
	id := strings.TrimSpace(req.BookingID)
	if id == "" {
		return model.Booking{}, validationf("booking id is required")
	}
	if req.StartTime.IsZero() {
		return model.Booking{}, validationf("start time is required")
	}

	booking, err := e.booking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if booking.Status == model.BookingStatusCancelled {
		return model.Booking{}, validationf("cancelled booking cannot be rescheduled")
	}

	meetingTypeID := booking.MeetingTypeID
	if v := strings.TrimSpace(req.MeetingTypeID); v != "" {
		meetingTypeID = v
	}
	mt, err := e.meetingType(ctx, meetingTypeID)
	if err != nil {
		return model.Booking{}, err
	}

	start := req.StartTime
	end := req.EndTime
	if end.IsZero() {
		end = start.Add(time.Duration(mt.DurationMinutes) * time.Minute)
	}
	if !end.After(start) {
		return model.Booking{}, validationf("end time must be after start time")
	}

	settings, err := e.ResolveSettings(ctx, booking.HostUserID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := e.checkHorizon(settings, start); err != nil {
		return model.Booking{}, err
	}

	conflicts, err := e.conflictingBookings(ctx, booking.HostUserID, booking.ID, start, end)
	if err != nil {
		return model.Booking{}, err
	}
	if len(conflicts) > 0 {
		return model.Booking{}, &ConflictError{Conflicts: conflicts}
	}

	booking.MeetingTypeID = mt.ID
	booking.StartTime = start
	booking.EndTime = end
	updated, err := e.bookings.Update(ctx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, &ConflictError{}
		}
		if storage.IsNotFound(err) {
			return model.Booking{}, fmt.Errorf("%w: booking %s", ErrNotFound, id)
		}
		return model.Booking{}, fmt.Errorf("update booking: %w", err)
	}
	return updated, nil
}

// CancelBooking flips a booking to cancelled (one-way). Cancelling an already
// cancelled booking returns it unchanged.
func (e *Engine) CancelBooking(ctx context.Context, bookingID, reason string) (model.Booking, error) {
	id := strings.TrimSpace(bookingID)
	if id == "" {
		return model.Booking{}, validationf("booking id is required")
	}
	booking, err := e.booking(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if booking.Status == model.BookingStatusCancelled {
		return booking, nil
	}
	cancelled, err := e.bookings.Cancel(ctx, id, strings.TrimSpace(reason))
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, fmt.Errorf("%w: booking %s", ErrNotFound, id)
		}
		return model.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}
	return cancelled, nil
}

func (e *Engine) ListBookings(ctx context.Context, hostUserID string, limit int) ([]model.Booking, error) {
	host := strings.TrimSpace(hostUserID)
	if host == "" {
		return nil, validationf("host user id is required")
	}
	out, err := e.bookings.ListByHost(ctx, host, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", host, err)
	}
	return out, nil
}

// conflictingBookings scans the host's entire non-cancelled booking set, not
// just the target day, and returns every booking overlapping [start, end).
func (e *Engine) conflictingBookings(ctx context.Context, host, excludeID string, start, end time.Time) ([]model.Booking, error) {
	existing, err := e.bookings.ListActive(ctx, host, excludeID)
	if err != nil {
		return nil, fmt.Errorf("load bookings for %s: %w", host, err)
	}
	var conflicts []model.Booking
	for _, b := range existing {
		if availability.Overlaps(start, end, b.StartTime, b.EndTime) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

func (e *Engine) checkHorizon(settings model.CalendarSettings, start time.Time) error {
	if settings.AdvanceBookingDays <= 0 {
		return nil
	}
	loc := e.location(settings)
	horizon := e.nowFunc().In(loc).AddDate(0, 0, settings.AdvanceBookingDays)
	if start.After(horizon) {
		return validationf("start time is beyond the %d-day booking horizon", settings.AdvanceBookingDays)
	}
	return nil
}

func (e *Engine) meetingType(ctx context.Context, id string) (model.MeetingType, error) {
	mt, err := e.types.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.MeetingType{}, fmt.Errorf("%w: meeting type %s", ErrNotFound, id)
		}
		return model.MeetingType{}, fmt.Errorf("load meeting type %s: %w", id, err)
	}
	if mt.DurationMinutes <= 0 {
		return model.MeetingType{}, validationf("meeting type %s has no duration", id)
	}
	return mt, nil
}

func (e *Engine) booking(ctx context.Context, id string) (model.Booking, error) {
	b, err := e.bookings.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, fmt.Errorf("%w: booking %s", ErrNotFound, id)
		}
		return model.Booking{}, fmt.Errorf("load booking %s: %w", id, err)
	}
	return b, nil
}

func (e *Engine) location(settings model.CalendarSettings) *time.Location {
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		e.logger.Warn("invalid host timezone, falling back to UTC", "user_id", settings.UserID, "timezone", settings.Timezone)
		return time.UTC
	}
	return loc
}

func parseClock(s string) (time.Duration, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}

func sameLocalDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
