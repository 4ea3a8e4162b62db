package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ventecrm/booking-engine/internal/model"
)

type fakeSettingsStore struct {
	rows    map[string]model.CalendarSettings
	creates int
}

func (f *fakeSettingsStore) GetOrCreate(_ context.Context, userID string, defaults model.CalendarSettings) (model.CalendarSettings, error) {
	if s, ok := f.rows[userID]; ok {
		return s, nil
	}
	f.creates++
	f.rows[userID] = defaults
	return defaults, nil
}

func (f *fakeSettingsStore) Update(_ context.Context, s model.CalendarSettings) (model.CalendarSettings, error) {
	f.rows[s.UserID] = s
	return s, nil
}

type fakeMeetingTypeStore struct {
	rows map[string]model.MeetingType
}

func (f *fakeMeetingTypeStore) Get(_ context.Context, id string) (model.MeetingType, error) {
	mt, ok := f.rows[id]
	if !ok {
		return model.MeetingType{}, pgx.ErrNoRows
	}
	return mt, nil
}

type fakeBookingStore struct {
	rows      map[string]model.Booking
	insertErr error
	answers   map[string][]model.BookingAnswer
}

func (f *fakeBookingStore) Insert(_ context.Context, b model.Booking) (model.Booking, error) {
	if f.insertErr != nil {
		return model.Booking{}, f.insertErr
	}
	b.CreatedAt = time.Now()
	f.rows[b.ID] = b
	return b, nil
}

func (f *fakeBookingStore) Get(_ context.Context, id string) (model.Booking, error) {
	b, ok := f.rows[id]
	if !ok {
		return model.Booking{}, pgx.ErrNoRows
	}
	return b, nil
}

func (f *fakeBookingStore) Update(_ context.Context, b model.Booking) (model.Booking, error) {
	if _, ok := f.rows[b.ID]; !ok {
		return model.Booking{}, pgx.ErrNoRows
	}
	f.rows[b.ID] = b
	return b, nil
}

func (f *fakeBookingStore) Cancel(_ context.Context, id, reason string) (model.Booking, error) {
	b, ok := f.rows[id]
	if !ok {
		return model.Booking{}, pgx.ErrNoRows
	}
	now := time.Now()
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &now
	b.CancelReason = reason
	f.rows[id] = b
	return b, nil
}

func (f *fakeBookingStore) ListActive(_ context.Context, hostUserID, excludeID string) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.rows {
		if b.HostUserID != hostUserID || b.Status == model.BookingStatusCancelled || b.ID == excludeID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBookingStore) ListActiveInRange(ctx context.Context, hostUserID string, from, to time.Time, excludeID string) ([]model.Booking, error) {
	all, err := f.ListActive(ctx, hostUserID, excludeID)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	for _, b := range all {
		if b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) ListByHost(_ context.Context, hostUserID string, limit int) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range f.rows {
		if b.HostUserID == hostUserID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) InsertAnswers(_ context.Context, bookingID string, answers []model.BookingAnswer) error {
	if f.answers == nil {
		f.answers = map[string][]model.BookingAnswer{}
	}
	f.answers[bookingID] = answers
	return nil
}

type fakeBlackoutStore struct {
	rows []model.UnavailableTime
}

func (f *fakeBlackoutStore) ListForRange(_ context.Context, userID string, from, to time.Time) ([]model.UnavailableTime, error) {
	var out []model.UnavailableTime
	for _, b := range f.rows {
		if b.UserID != userID {
			continue
		}
		if b.IsAllDay || (b.StartTime.Before(to) && from.Before(b.EndTime)) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fixture struct {
	engine    *Engine
	settings  *fakeSettingsStore
	types     *fakeMeetingTypeStore
	bookings  *fakeBookingStore
	blackouts *fakeBlackoutStore
}

const (
	testHost        = "0b0e8656-5ab0-4010-9f3c-07f16b94e34a"
	testMeetingType = "5a1f8a9e-42cf-49f1-a58c-3f2fcb3f89aa"
)

// newFixture wires an engine against in-memory stores. The host works
// Mon-Fri 09:00-17:00 UTC with 30-minute slots, and "now" is pinned to
// Sunday 2026-03-01 so the Wednesday 2026-03-04 test date sits inside the
// 30-day horizon with no past slots.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	settings := model.DefaultCalendarSettings(testHost)
	settings.Timezone = "UTC"

	f := &fixture{
		settings: &fakeSettingsStore{rows: map[string]model.CalendarSettings{testHost: settings}},
		types: &fakeMeetingTypeStore{rows: map[string]model.MeetingType{
			testMeetingType: {ID: testMeetingType, Name: "Intro call", DurationMinutes: 30},
		}},
		bookings:  &fakeBookingStore{rows: map[string]model.Booking{}},
		blackouts: &fakeBlackoutStore{},
	}
	f.engine = New(f.settings, f.types, f.bookings, f.blackouts, slog.New(slog.DiscardHandler))
	f.engine.nowFunc = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *fixture) addBooking(t *testing.T, start, end time.Time, status string) model.Booking {
	t.Helper()
	b := model.Booking{
		ID:            uuid.NewString(),
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		GuestName:     "Ada Guest",
		StartTime:     start,
		EndTime:       end,
		Status:        status,
	}
	f.bookings.rows[b.ID] = b
	return b
}

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
}

func TestAvailability_OpenDay(t *testing.T) {
	f := newFixture(t)

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-04",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day(t).Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Start.Format(time.RFC3339))
	}
	if !slots[15].Start.Equal(day(t).Add(16*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected last slot 16:30, got %s", slots[15].Start.Format(time.RFC3339))
	}
	if !slots[0].End.Equal(slots[0].Start.Add(30 * time.Minute)) {
		t.Fatalf("slot end must be start plus duration, got %s", slots[0].End.Format(time.RFC3339))
	}
}

func TestAvailability_ExistingBookingBlocksOnlyItsSlot(t *testing.T) {
	f := newFixture(t)
	f.addBooking(t, day(t).Add(10*time.Hour), day(t).Add(10*time.Hour+30*time.Minute), model.BookingStatusConfirmed)

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-04",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}
	var has930, has1000, has1030 bool
	for _, s := range slots {
		switch {
		case s.Start.Equal(day(t).Add(9*time.Hour + 30*time.Minute)):
			has930 = true
		case s.Start.Equal(day(t).Add(10 * time.Hour)):
			has1000 = true
		case s.Start.Equal(day(t).Add(10*time.Hour + 30*time.Minute)):
			has1030 = true
		}
	}
	if has1000 {
		t.Fatal("booked 10:00 slot must be excluded")
	}
	if !has930 || !has1030 {
		t.Fatalf("adjacent slots must remain: 09:30=%v 10:30=%v", has930, has1030)
	}
}

func TestAvailability_DisabledDayIsEmpty(t *testing.T) {
	f := newFixture(t)

	// 2026-03-07 is a Saturday; defaults disable weekends.
	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-07",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a disabled day, got %d", len(slots))
	}
}

func TestAvailability_AllDayBlockEmptiesDay(t *testing.T) {
	f := newFixture(t)
	// Stored start/end cover only one minute; the all-day flag wins.
	f.blackouts.rows = append(f.blackouts.rows, model.UnavailableTime{
		ID:        uuid.NewString(),
		UserID:    testHost,
		StartTime: day(t).Add(13 * time.Hour),
		EndTime:   day(t).Add(13*time.Hour + time.Minute),
		IsAllDay:  true,
	})

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-04",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots under an all-day block, got %d", len(slots))
	}
}

func TestAvailability_AllDayBlockOnOtherDateIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.blackouts.rows = append(f.blackouts.rows, model.UnavailableTime{
		ID:        uuid.NewString(),
		UserID:    testHost,
		StartTime: day(t).AddDate(0, 0, 1),
		EndTime:   day(t).AddDate(0, 0, 1).Add(time.Hour),
		IsAllDay:  true,
	})

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-04",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected a full day, got %d slots", len(slots))
	}
}

func TestAvailability_TimedBlockRemovesOverlapping(t *testing.T) {
	f := newFixture(t)
	f.blackouts.rows = append(f.blackouts.rows, model.UnavailableTime{
		ID:        uuid.NewString(),
		UserID:    testHost,
		StartTime: day(t).Add(12 * time.Hour),
		EndTime:   day(t).Add(13 * time.Hour),
	})

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-04",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 14 {
		t.Fatalf("expected 14 slots with lunch blocked, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(day(t).Add(12*time.Hour)) || s.Start.Equal(day(t).Add(12*time.Hour+30*time.Minute)) {
			t.Fatalf("blocked slot %s leaked through", s.Start.Format(time.RFC3339))
		}
	}
}

func TestAvailability_CancelledBookingDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.addBooking(t, day(t).Add(10*time.Hour), day(t).Add(10*time.Hour+30*time.Minute), model.BookingStatusCancelled)

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-04",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("cancelled booking must not block slots: got %d", len(slots))
	}
}

func TestAvailability_BeyondHorizonIsEmpty(t *testing.T) {
	f := newFixture(t)

	// Default horizon is 30 days from the pinned 2026-03-01 clock.
	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-05-01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots past the booking horizon, got %d", len(slots))
	}
}

func TestAvailability_SkipsPastSlots(t *testing.T) {
	f := newFixture(t)
	f.engine.nowFunc = func() time.Time {
		return day(t).Add(12*time.Hour + 10*time.Minute)
	}

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		Date:          "2026-03-04",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 09:00 through 12:00 have started already; 12:30 onward remain.
	if len(slots) != 9 {
		t.Fatalf("expected 9 future slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day(t).Add(12*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected first slot 12:30, got %s", slots[0].Start.Format(time.RFC3339))
	}
}

func TestAvailability_ExcludeBookingForReschedule(t *testing.T) {
	f := newFixture(t)
	b := f.addBooking(t, day(t).Add(10*time.Hour), day(t).Add(10*time.Hour+30*time.Minute), model.BookingStatusConfirmed)

	slots, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:       testHost,
		MeetingTypeID:    testMeetingType,
		Date:             "2026-03-04",
		ExcludeBookingID: b.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("excluded booking must free its own slot: got %d slots", len(slots))
	}
}

func TestAvailability_UnknownMeetingType(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Availability(context.Background(), AvailabilityQuery{
		HostUserID:    testHost,
		MeetingTypeID: uuid.NewString(),
		Date:          "2026-03-04",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAvailability_BadInput(t *testing.T) {
	f := newFixture(t)

	cases := []AvailabilityQuery{
		{MeetingTypeID: testMeetingType, Date: "2026-03-04"},
		{HostUserID: testHost, Date: "2026-03-04"},
		{HostUserID: testHost, MeetingTypeID: testMeetingType, Date: "04/03/2026"},
	}
	for i, q := range cases {
		if _, err := f.engine.Availability(context.Background(), q); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestResolveSettings_CreatesOnce(t *testing.T) {
	f := newFixture(t)
	newHost := uuid.NewString()

	first, err := f.engine.ResolveSettings(context.Background(), newHost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.engine.ResolveSettings(context.Background(), newHost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.settings.creates != 1 {
		t.Fatalf("expected one settings row created, got %d", f.settings.creates)
	}
	if first.UserID != second.UserID || first.SlotDurationMinutes != second.SlotDurationMinutes {
		t.Fatal("repeated resolution must return the same settings")
	}
	if first.SlotDurationMinutes != 30 || first.AdvanceBookingDays != 30 {
		t.Fatalf("unexpected defaults: %+v", first)
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	f := newFixture(t)
	base := model.DefaultCalendarSettings(testHost)
	base.Timezone = "UTC"

	bad := base
	bad.SlotDurationMinutes = 0
	if _, err := f.engine.UpdateSettings(context.Background(), bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero slot duration: expected ErrValidation, got %v", err)
	}

	bad = base
	bad.Timezone = "Mars/Olympus"
	if _, err := f.engine.UpdateSettings(context.Background(), bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad timezone: expected ErrValidation, got %v", err)
	}

	bad = base
	hours := model.WorkingHours{}
	for k, v := range base.WorkingHours {
		hours[k] = v
	}
	hours["monday"] = model.DaySchedule{Start: "17:00", End: "09:00", Enabled: true}
	bad.WorkingHours = hours
	if _, err := f.engine.UpdateSettings(context.Background(), bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("inverted hours: expected ErrValidation, got %v", err)
	}

	if _, err := f.engine.UpdateSettings(context.Background(), base); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}
}

func TestCreateBooking_Succeeds(t *testing.T) {
	f := newFixture(t)

	created, err := f.engine.CreateBooking(context.Background(), BookingRequest{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		StartTime:     day(t).Add(14 * time.Hour),
		GuestName:     "Ada Guest",
		GuestEmail:    "ada@example.com",
		Answers:       []model.BookingAnswer{{Question: "Topic", Answer: "Renewal"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if created.Status != model.BookingStatusConfirmed {
		t.Fatalf("expected confirmed status, got %q", created.Status)
	}
	// End derived from the 30-minute meeting type.
	if !created.EndTime.Equal(day(t).Add(14*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected derived end 14:30, got %s", created.EndTime.Format(time.RFC3339))
	}
	if got := f.bookings.answers[created.ID]; len(got) != 1 || got[0].Answer != "Renewal" {
		t.Fatalf("answers not stored: %+v", got)
	}
}

func TestCreateBooking_ConflictListsCollidingBooking(t *testing.T) {
	f := newFixture(t)
	existing := f.addBooking(t, day(t).Add(14*time.Hour+15*time.Minute), day(t).Add(14*time.Hour+45*time.Minute), model.BookingStatusConfirmed)

	_, err := f.engine.CreateBooking(context.Background(), BookingRequest{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		StartTime:     day(t).Add(14 * time.Hour),
		EndTime:       day(t).Add(14*time.Hour + 30*time.Minute),
		GuestName:     "Ada Guest",
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].ID != existing.ID {
		t.Fatalf("conflict must list the colliding booking: %+v", conflict.Conflicts)
	}
}

func TestCreateBooking_BackToBackIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.addBooking(t, day(t).Add(14*time.Hour), day(t).Add(14*time.Hour+30*time.Minute), model.BookingStatusConfirmed)

	_, err := f.engine.CreateBooking(context.Background(), BookingRequest{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		StartTime:     day(t).Add(14*time.Hour + 30*time.Minute),
		GuestName:     "Ada Guest",
	})
	if err != nil {
		t.Fatalf("adjacent booking must succeed: %v", err)
	}
}

func TestCreateBooking_CancelledBookingDoesNotConflict(t *testing.T) {
	f := newFixture(t)
	f.addBooking(t, day(t).Add(14*time.Hour), day(t).Add(14*time.Hour+30*time.Minute), model.BookingStatusCancelled)

	_, err := f.engine.CreateBooking(context.Background(), BookingRequest{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		StartTime:     day(t).Add(14 * time.Hour),
		GuestName:     "Ada Guest",
	})
	if err != nil {
		t.Fatalf("cancelled booking must not conflict: %v", err)
	}
}

func TestCreateBooking_ConstraintRaceMapsToConflict(t *testing.T) {
	f := newFixture(t)
	f.bookings.insertErr = &pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"}

	_, err := f.engine.CreateBooking(context.Background(), BookingRequest{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		StartTime:     day(t).Add(14 * time.Hour),
		GuestName:     "Ada Guest",
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError from constraint violation, got %v", err)
	}
	if len(conflict.Conflicts) != 0 {
		t.Fatalf("race-detected conflict carries no booking list, got %d", len(conflict.Conflicts))
	}
}

func TestCreateBooking_HorizonEnforced(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateBooking(context.Background(), BookingRequest{
		HostUserID:    testHost,
		MeetingTypeID: testMeetingType,
		StartTime:     time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC),
		GuestName:     "Ada Guest",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation past the horizon, got %v", err)
	}
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []BookingRequest{
		{MeetingTypeID: testMeetingType, StartTime: day(t).Add(14 * time.Hour), GuestName: "Ada"},
		{HostUserID: testHost, StartTime: day(t).Add(14 * time.Hour), GuestName: "Ada"},
		{HostUserID: testHost, MeetingTypeID: testMeetingType, GuestName: "Ada"},
		{HostUserID: testHost, MeetingTypeID: testMeetingType, StartTime: day(t).Add(14 * time.Hour)},
		{
			HostUserID: testHost, MeetingTypeID: testMeetingType, GuestName: "Ada",
			StartTime: day(t).Add(14 * time.Hour), EndTime: day(t).Add(13 * time.Hour),
		},
	}
	for i, req := range cases {
		if _, err := f.engine.CreateBooking(context.Background(), req); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestRescheduleBooking_ExcludesOwnInterval(t *testing.T) {
	f := newFixture(t)
	b := f.addBooking(t, day(t).Add(9*time.Hour), day(t).Add(9*time.Hour+30*time.Minute), model.BookingStatusConfirmed)

	// 09:15-09:45 overlaps the booking's own prior slot only.
	updated, err := f.engine.RescheduleBooking(context.Background(), RescheduleRequest{
		BookingID: b.ID,
		StartTime: day(t).Add(9*time.Hour + 15*time.Minute),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.StartTime.Equal(day(t).Add(9*time.Hour + 15*time.Minute)) {
		t.Fatalf("start not moved: %s", updated.StartTime.Format(time.RFC3339))
	}
	if !updated.EndTime.Equal(day(t).Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("end not derived: %s", updated.EndTime.Format(time.RFC3339))
	}
}

func TestRescheduleBooking_ConflictWithOtherBooking(t *testing.T) {
	f := newFixture(t)
	b := f.addBooking(t, day(t).Add(9*time.Hour), day(t).Add(9*time.Hour+30*time.Minute), model.BookingStatusConfirmed)
	other := f.addBooking(t, day(t).Add(9*time.Hour+30*time.Minute), day(t).Add(10*time.Hour), model.BookingStatusConfirmed)

	_, err := f.engine.RescheduleBooking(context.Background(), RescheduleRequest{
		BookingID: b.ID,
		StartTime: day(t).Add(9*time.Hour + 15*time.Minute),
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].ID != other.ID {
		t.Fatalf("conflict must list the other booking: %+v", conflict.Conflicts)
	}
}

func TestRescheduleBooking_CancelledRejected(t *testing.T) {
	f := newFixture(t)
	b := f.addBooking(t, day(t).Add(9*time.Hour), day(t).Add(9*time.Hour+30*time.Minute), model.BookingStatusCancelled)

	_, err := f.engine.RescheduleBooking(context.Background(), RescheduleRequest{
		BookingID: b.ID,
		StartTime: day(t).Add(11 * time.Hour),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRescheduleBooking_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.RescheduleBooking(context.Background(), RescheduleRequest{
		BookingID: uuid.NewString(),
		StartTime: day(t).Add(11 * time.Hour),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelBooking_Idempotent(t *testing.T) {
	f := newFixture(t)
	b := f.addBooking(t, day(t).Add(9*time.Hour), day(t).Add(9*time.Hour+30*time.Minute), model.BookingStatusConfirmed)

	first, err := f.engine.CancelBooking(context.Background(), b.ID, "guest asked")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != model.BookingStatusCancelled || first.CancelledAt == nil {
		t.Fatalf("booking not cancelled: %+v", first)
	}
	if first.CancelReason != "guest asked" {
		t.Fatalf("reason not stored: %q", first.CancelReason)
	}

	second, err := f.engine.CancelBooking(context.Background(), b.ID, "again")
	if err != nil {
		t.Fatalf("re-cancel must not error: %v", err)
	}
	if second.CancelReason != "guest asked" {
		t.Fatal("re-cancel must not overwrite the original reason")
	}
}
