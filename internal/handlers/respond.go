package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ventecrm/booking-engine/internal/engine"
	"github.com/ventecrm/booking-engine/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type bookingItem struct {
	BookingID     string `json:"booking_id"`
	HostUserID    string `json:"host_user_id"`
	MeetingTypeID string `json:"meeting_type_id"`
	GuestName     string `json:"guest_name"`
	GuestEmail    string `json:"guest_email,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	ProspectID    string `json:"prospect_id,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toBookingItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID:     b.ID,
		HostUserID:    b.HostUserID,
		MeetingTypeID: b.MeetingTypeID,
		GuestName:     b.GuestName,
		GuestEmail:    b.GuestEmail,
		ClientID:      b.ClientID,
		ProspectID:    b.ProspectID,
		StartTime:     b.StartTime.UTC().Format(time.RFC3339),
		EndTime:       b.EndTime.UTC().Format(time.RFC3339),
		Status:        b.Status,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

type conflictResponse struct {
	Error     string        `json:"error"`
	Conflicts []bookingItem `json:"conflicts"`
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses:
// validation 400, missing lookups 404, interval conflicts 409 with the
// colliding bookings attached, everything else 500.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var conflict *engine.ConflictError
	switch {
	case errors.As(err, &conflict):
		items := make([]bookingItem, 0, len(conflict.Conflicts))
		for _, b := range conflict.Conflicts {
			items = append(items, toBookingItem(b))
		}
		writeJSON(w, http.StatusConflict, conflictResponse{Error: conflict.Error(), Conflicts: items})
	case errors.Is(err, engine.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
