package engine

import (
	"errors"
	"fmt"

	"github.com/ventecrm/booking-engine/internal/model"
)

// ErrValidation marks missing or malformed caller input. Not retryable.
var ErrValidation = errors.New("validation failed")

// ErrNotFound marks a mandatory lookup that came back empty (e.g. the meeting
// type). Settings are never "not found": they are created on first access.
var ErrNotFound = errors.New("not found")

// ConflictError reports that a requested interval overlaps existing bookings
// or blackout windows. Conflicts carries the colliding bookings so the caller
// can offer alternatives; it is empty when the database constraint caught a
// concurrent insert the engine's own read missed.
type ConflictError struct {
	Conflicts []model.Booking
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "requested time is no longer available"
	}
	return fmt.Sprintf("requested time overlaps %d existing booking(s)", len(e.Conflicts))
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
