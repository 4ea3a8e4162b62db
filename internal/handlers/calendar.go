package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ventecrm/booking-engine/internal/engine"
	"github.com/ventecrm/booking-engine/internal/model"
	"github.com/ventecrm/booking-engine/internal/storage"
)

// CalendarHandler serves the host-facing calendar configuration surface:
// working-hours settings, unavailable-time blackouts, and the meeting type
// catalog (read-only here; meeting types are managed by the CRM proper).
type CalendarHandler struct {
	engine       *engine.Engine
	blackouts    *storage.UnavailableRepository
	meetingTypes *storage.MeetingTypeRepository
	logger       *slog.Logger
}

func NewCalendarHandler(eng *engine.Engine, blackouts *storage.UnavailableRepository, meetingTypes *storage.MeetingTypeRepository, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		engine:       eng,
		blackouts:    blackouts,
		meetingTypes: meetingTypes,
		logger:       logger,
	}
}

type settingsPayload struct {
	UserID              string             `json:"user_id"`
	Timezone            string             `json:"timezone"`
	WorkingHours        model.WorkingHours `json:"working_hours"`
	SlotDurationMinutes int                `json:"slot_duration_minutes"`
	BreakTimeMinutes    int                `json:"break_time_minutes"`
	AdvanceBookingDays  int                `json:"advance_booking_days"`
}

func toSettingsPayload(s model.CalendarSettings) settingsPayload {
	return settingsPayload{
		UserID:              s.UserID,
		Timezone:            s.Timezone,
		WorkingHours:        s.WorkingHours,
		SlotDurationMinutes: s.SlotDurationMinutes,
		BreakTimeMinutes:    s.BreakTimeMinutes,
		AdvanceBookingDays:  s.AdvanceBookingDays,
	}
}

// Settings resolves on GET (creating defaults for first-time hosts) and
// replaces on PUT.
func (h *CalendarHandler) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		settings, err := h.engine.ResolveSettings(r.Context(), userID)
		if err != nil {
			writeEngineError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSettingsPayload(settings))
	case http.MethodPut:
		var req settingsPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		settings, err := h.engine.UpdateSettings(r.Context(), model.CalendarSettings{
			UserID:              req.UserID,
			Timezone:            req.Timezone,
			WorkingHours:        req.WorkingHours,
			SlotDurationMinutes: req.SlotDurationMinutes,
			BreakTimeMinutes:    req.BreakTimeMinutes,
			AdvanceBookingDays:  req.AdvanceBookingDays,
		})
		if err != nil {
			writeEngineError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSettingsPayload(settings))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type blackoutPayload struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsAllDay  bool   `json:"is_all_day"`
	Reason    string `json:"reason,omitempty"`
}

func (h *CalendarHandler) UnavailableTimes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBlackouts(w, r)
	case http.MethodPost:
		h.createBlackout(w, r)
	case http.MethodDelete:
		h.deleteBlackout(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CalendarHandler) createBlackout(w http.ResponseWriter, r *http.Request) {
	var req blackoutPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !req.IsAllDay && !endTime.After(startTime) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	block, err := h.blackouts.Create(r.Context(), model.UnavailableTime{
		UserID:    req.UserID,
		StartTime: startTime,
		EndTime:   endTime,
		IsAllDay:  req.IsAllDay,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		h.logger.Error("blackout create failed", "err", err)
		http.Error(w, "failed to create unavailable time", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toBlackoutPayload(block))
}

func (h *CalendarHandler) listBlackouts(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	blocks, err := h.blackouts.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("blackout list failed", "err", err)
		http.Error(w, "failed to list unavailable times", http.StatusInternalServerError)
		return
	}
	items := make([]blackoutPayload, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, toBlackoutPayload(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *CalendarHandler) deleteBlackout(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	blockID := strings.TrimSpace(r.URL.Query().Get("id"))
	if userID == "" || blockID == "" {
		http.Error(w, "user_id and id required", http.StatusBadRequest)
		return
	}
	if err := h.blackouts.Delete(r.Context(), userID, blockID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "unavailable time not found", http.StatusNotFound)
			return
		}
		h.logger.Error("blackout delete failed", "err", err)
		http.Error(w, "failed to delete unavailable time", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meetingTypeItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	ColorTag        string `json:"color_tag,omitempty"`
}

func (h *CalendarHandler) MeetingTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	types, err := h.meetingTypes.List(r.Context(), 100)
	if err != nil {
		h.logger.Error("meeting type list failed", "err", err)
		http.Error(w, "failed to list meeting types", http.StatusInternalServerError)
		return
	}
	items := make([]meetingTypeItem, 0, len(types))
	for _, mt := range types {
		items = append(items, meetingTypeItem{
			ID:              mt.ID,
			Name:            mt.Name,
			DurationMinutes: mt.DurationMinutes,
			ColorTag:        mt.ColorTag,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func toBlackoutPayload(b model.UnavailableTime) blackoutPayload {
	return blackoutPayload{
		ID:        b.ID,
		UserID:    b.UserID,
		StartTime: b.StartTime.UTC().Format(time.RFC3339),
		EndTime:   b.EndTime.UTC().Format(time.RFC3339),
		IsAllDay:  b.IsAllDay,
		Reason:    b.Reason,
	}
}
