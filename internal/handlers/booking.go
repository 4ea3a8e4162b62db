package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ventecrm/booking-engine/internal/directory"
	"github.com/ventecrm/booking-engine/internal/engine"
	"github.com/ventecrm/booking-engine/internal/model"
	"github.com/ventecrm/booking-engine/internal/storage"
)

type BookingHandler struct {
	engine      *engine.Engine
	idempotency *storage.IdempotencyRepository
	directory   directory.Provider
	logger      *slog.Logger
}

func NewBookingHandler(eng *engine.Engine, idempotency *storage.IdempotencyRepository, dir directory.Provider, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		engine:      eng,
		idempotency: idempotency,
		directory:   dir,
		logger:      logger,
	}
}

type answerPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type createBookingRequest struct {
	HostUserID    string          `json:"host_user_id"`
	MeetingTypeID string          `json:"meeting_type_id"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	GuestName     string          `json:"guest_name"`
	GuestEmail    string          `json:"guest_email"`
	ClientID      string          `json:"client_id"`
	ProspectID    string          `json:"prospect_id"`
	Answers       []answerPayload `json:"answers"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	startTime, endTime, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	ctx := r.Context()
	host := strings.TrimSpace(req.HostUserID)

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" && host != "" {
		rec, exists, err := h.idempotency.Claim(ctx, host, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to claim idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.Completed() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	// Production guardrail: when the user directory is deployed, refuse
	// bookings against unknown or deactivated hosts up front.
	if h.directory != nil {
		if !h.hostBookable(ctx, w, host) {
			return
		}
	}

	answers := make([]model.BookingAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		if strings.TrimSpace(a.Question) == "" {
			continue
		}
		answers = append(answers, model.BookingAnswer{Question: a.Question, Answer: a.Answer})
	}

	booking, err := h.engine.CreateBooking(ctx, engine.BookingRequest{
		HostUserID:    host,
		MeetingTypeID: req.MeetingTypeID,
		StartTime:     startTime,
		EndTime:       endTime,
		GuestName:     req.GuestName,
		GuestEmail:    req.GuestEmail,
		ClientID:      req.ClientID,
		ProspectID:    req.ProspectID,
		Answers:       answers,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	respBody, err := json.Marshal(toBookingItem(booking))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.idempotency.Finalize(ctx, host, idempotencyKey, booking.ID, http.StatusCreated, respBody); err != nil {
			h.logger.Error("failed to finalize idempotency key", "err", err, "booking_id", booking.ID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

type rescheduleBookingRequest struct {
	BookingID     string `json:"booking_id"`
	MeetingTypeID string `json:"meeting_type_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	startTime, endTime, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}

	booking, err := h.engine.RescheduleBooking(r.Context(), engine.RescheduleRequest{
		BookingID:     req.BookingID,
		MeetingTypeID: req.MeetingTypeID,
		StartTime:     startTime,
		EndTime:       endTime,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(booking))
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	booking, err := h.engine.CancelBooking(r.Context(), req.BookingID, req.Reason)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingItem(booking))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hostUserID := strings.TrimSpace(r.URL.Query().Get("host_user_id"))
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.engine.ListBookings(r.Context(), hostUserID, limit)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) hostBookable(ctx context.Context, w http.ResponseWriter, hostUserID string) bool {
	lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	host, err := h.directory.GetHost(lookupCtx, hostUserID)
	if err != nil {
		h.logger.Warn("directory lookup failed", "host_user_id", hostUserID, "err", err)
		http.Error(w, "user directory unavailable", http.StatusServiceUnavailable)
		return false
	}
	if !host.Active {
		http.Error(w, "host is not accepting bookings", http.StatusUnprocessableEntity)
		return false
	}
	return true
}

// parseInterval decodes the optional RFC3339 start/end pair. A missing end is
// allowed (the engine derives it from the meeting type duration).
func parseInterval(w http.ResponseWriter, startRaw, endRaw string) (time.Time, time.Time, bool) {
	var startTime, endTime time.Time
	var err error
	if strings.TrimSpace(startRaw) != "" {
		startTime, err = time.Parse(time.RFC3339, startRaw)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}
	if strings.TrimSpace(endRaw) != "" {
		endTime, err = time.Parse(time.RFC3339, endRaw)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
	}
	return startTime, endTime, true
}
