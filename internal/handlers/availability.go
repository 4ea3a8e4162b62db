package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ventecrm/booking-engine/internal/engine"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Availability serves the public booking page's slot picker.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := engine.AvailabilityQuery{
		HostUserID:       strings.TrimSpace(r.URL.Query().Get("host_user_id")),
		MeetingTypeID:    strings.TrimSpace(r.URL.Query().Get("meeting_type_id")),
		Date:             strings.TrimSpace(r.URL.Query().Get("date")),
		ExcludeBookingID: strings.TrimSpace(r.URL.Query().Get("exclude_booking_id")),
	}

	slots, err := h.engine.Availability(r.Context(), q)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}
