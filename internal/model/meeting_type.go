package model

import "time"

// MeetingType is a read-only lookup for this engine: it supplies the meeting
// duration and a display color, nothing else.
type MeetingType struct {
	ID              string
	Name            string
	DurationMinutes int
	ColorTag        string
	CreatedAt       time.Time
}
