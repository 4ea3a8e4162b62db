package model

import "time"

// UnavailableTime is an explicit blackout the host has marked as not bookable.
// When IsAllDay is set the block covers the whole calendar day of StartTime in
// the host's timezone, whatever the stored start/end say.
type UnavailableTime struct {
	ID        string
	UserID    string
	StartTime time.Time
	EndTime   time.Time
	IsAllDay  bool
	Reason    string
	CreatedAt time.Time
}
