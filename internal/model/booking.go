package model

import "time"

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

type Booking struct {
	ID            string
	HostUserID    string
	MeetingTypeID string
	GuestName     string
	GuestEmail    string
	ClientID      string
	ProspectID    string
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

// BookingAnswer captures one free-form question/answer pair collected on the
// public booking page. Answers are a best-effort secondary write: losing them
// never fails the booking itself.
type BookingAnswer struct {
	BookingID string
	Question  string
	Answer    string
}
