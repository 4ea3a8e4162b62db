package model

import "time"

// DaySchedule is one weekday's bookable window. Start and End are wall-clock
// "HH:MM" strings interpreted in the host's timezone.
type DaySchedule struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Enabled bool   `json:"enabled"`
}

// WorkingHours maps lowercase weekday names ("monday".."sunday") to schedules.
type WorkingHours map[string]DaySchedule

// CalendarSettings is a host's availability configuration, one row per host.
type CalendarSettings struct {
	UserID              string
	Timezone            string
	WorkingHours        WorkingHours
	SlotDurationMinutes int
	// BreakTimeMinutes is stored and surfaced through the settings API but is
	// not consumed by slot generation (parity with the legacy behavior).
	BreakTimeMinutes   int
	AdvanceBookingDays int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WeekdayKeys lists the seven working-hours keys in calendar order.
var WeekdayKeys = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// WeekdayKey returns the working-hours map key for a weekday.
func WeekdayKey(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

// DefaultCalendarSettings is the single source for newly provisioned hosts:
// Mon-Fri 09:00-17:00, weekends off, 30-minute slots.
func DefaultCalendarSettings(userID string) CalendarSettings {
	hours := WorkingHours{}
	for _, key := range WeekdayKeys {
		enabled := key != "saturday" && key != "sunday"
		hours[key] = DaySchedule{Start: "09:00", End: "17:00", Enabled: enabled}
	}
	return CalendarSettings{
		UserID:              userID,
		Timezone:            "Europe/Paris",
		WorkingHours:        hours,
		SlotDurationMinutes: 30,
		BreakTimeMinutes:    60,
		AdvanceBookingDays:  30,
	}
}
