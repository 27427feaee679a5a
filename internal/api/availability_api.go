package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tutorbook/internal/metrics"
	"tutorbook/internal/model"
	"tutorbook/internal/slots"
)

// ProfileRequest is the body for PUT /api/v1/tutors/{tutorID}/availability.
type ProfileRequest struct {
	Timezone        string                `json:"timezone"`
	SlotInterval    int                   `json:"slot_interval"`
	SlotStartPolicy model.SlotStartPolicy `json:"slot_start_policy"`
	Weekly          []model.WeeklyRule    `json:"weekly"`
	Exceptions      []model.DateException `json:"exceptions"`
}

// handleGetProfile returns the tutor's profile, or an empty object if none
// exists yet.
// GET /api/v1/tutors/{tutorID}/availability
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_profile")

	tutorID, ok := s.tutorID(w, r)
	if !ok {
		return
	}

	profile, err := s.db.GetProfile(r.Context(), tutorID)
	if errors.Is(err, slots.ErrProfileNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("tutor_id", tutorID).Msg("failed to load profile")
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handlePutProfile replaces the tutor's whole availability profile.
// PUT /api/v1/tutors/{tutorID}/availability
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("put_profile")

	tutorID, ok := s.tutorID(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profile := &model.AvailabilityProfile{
		TutorID:         tutorID,
		Timezone:        req.Timezone,
		SlotInterval:    req.SlotInterval,
		SlotStartPolicy: req.SlotStartPolicy,
		Weekly:          req.Weekly,
		Exceptions:      req.Exceptions,
	}
	if err := profile.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.SaveProfile(r.Context(), profile); err != nil {
		s.log.Error().Err(err).Int64("tutor_id", tutorID).Msg("failed to save profile")
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	s.cache.Bump(r.Context(), tutorID)

	s.log.Info().Int64("tutor_id", tutorID).Msg("availability profile replaced")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleUpsertException replaces any existing exception for the date.
// POST /api/v1/tutors/{tutorID}/availability/exceptions
func (s *Server) handleUpsertException(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("upsert_exception")

	tutorID, ok := s.tutorID(w, r)
	if !ok {
		return
	}

	var exc model.DateException
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&exc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := exc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.db.UpsertException(r.Context(), tutorID, exc)
	if errors.Is(err, slots.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "tutor has no availability profile")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("tutor_id", tutorID).Str("date", exc.Date).Msg("failed to upsert exception")
		writeError(w, http.StatusInternalServerError, "failed to save exception")
		return
	}
	s.cache.Bump(r.Context(), tutorID)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleDeleteException removes the exception for a date.
// DELETE /api/v1/tutors/{tutorID}/availability/exceptions/{date}
func (s *Server) handleDeleteException(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_exception")

	tutorID, ok := s.tutorID(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")

	if err := s.db.DeleteException(r.Context(), tutorID, date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.cache.Bump(r.Context(), tutorID)

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) tutorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tutorID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid tutor id")
		return 0, false
	}
	return id, true
}
