package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tutorbook/internal/metrics"
	"tutorbook/internal/model"
)

// SlotsResponse is the response for GET /api/v1/slots.
type SlotsResponse struct {
	TutorID         int64    `json:"tutor_id"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	DurationMinutes int      `json:"duration_minutes"`
	DisplayTimezone string   `json:"display_timezone"`
	Slots           []string `json:"slots"` // ISO-8601 start instants, ascending
}

// handleQuerySlots returns the bookable start instants for a tutor.
// GET /api/v1/slots?tutor_id=&from=&to=&duration_minutes=&display_timezone=
func (s *Server) handleQuerySlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("query_slots")
	metrics.IncSlotQuery()

	q := r.URL.Query()
	tutorID, err := strconv.ParseInt(q.Get("tutor_id"), 10, 64)
	if err != nil || tutorID <= 0 {
		writeError(w, http.StatusBadRequest, "tutor_id is required")
		return
	}

	fromDate, toDate := q.Get("from"), q.Get("to")
	if err := s.validateDateRange(fromDate, toDate); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	durationMin, err := strconv.Atoi(q.Get("duration_minutes"))
	if err != nil || durationMin <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be a positive integer")
		return
	}

	displayTZ := q.Get("display_timezone")
	if displayTZ == "" {
		displayTZ = "UTC"
	}
	if _, err := time.LoadLocation(displayTZ); err != nil {
		writeError(w, http.StatusBadRequest, "unknown display_timezone")
		return
	}

	cacheKey := fmt.Sprintf("%s:%s:%d:%s", fromDate, toDate, durationMin, displayTZ)
	var resp SlotsResponse
	if s.cache.Get(r.Context(), tutorID, cacheKey, &resp) {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	starts, err := s.slots.Query(r.Context(), tutorID, fromDate, toDate, durationMin, displayTZ)
	if err != nil {
		s.log.Error().Err(err).Int64("tutor_id", tutorID).Msg("slot query failed")
		writeError(w, http.StatusInternalServerError, "slot query failed")
		return
	}

	iso := make([]string, 0, len(starts))
	for _, t := range starts {
		iso = append(iso, t.Format(time.RFC3339))
	}
	resp = SlotsResponse{
		TutorID:         tutorID,
		From:            fromDate,
		To:              toDate,
		DurationMinutes: durationMin,
		DisplayTimezone: displayTZ,
		Slots:           iso,
	}
	s.cache.Set(r.Context(), tutorID, cacheKey, resp)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) validateDateRange(fromDate, toDate string) error {
	if fromDate == "" || toDate == "" {
		return fmt.Errorf("from and to are required")
	}
	from, err := time.Parse(model.DateFormat, fromDate)
	if err != nil {
		return fmt.Errorf("invalid from date; expected YYYY-MM-DD")
	}
	to, err := time.Parse(model.DateFormat, toDate)
	if err != nil {
		return fmt.Errorf("invalid to date; expected YYYY-MM-DD")
	}
	if from.After(to) {
		return fmt.Errorf("from must be before or equal to to")
	}
	if int(to.Sub(from).Hours()/24) > s.maxRangeDays {
		return fmt.Errorf("date range exceeds maximum of %d days", s.maxRangeDays)
	}
	return nil
}
