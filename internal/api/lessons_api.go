package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tutorbook/internal/db"
	"tutorbook/internal/metrics"
	"tutorbook/internal/model"
	"tutorbook/internal/slots"
)

// BookLessonRequest is the body for POST /api/v1/lessons.
type BookLessonRequest struct {
	TutorID         int64  `json:"tutor_id"`
	StudentID       int64  `json:"student_id"`
	StartTime       string `json:"start_time"` // RFC 3339
	EndTime         string `json:"end_time"`   // RFC 3339
	DurationMinutes int    `json:"duration_minutes"`
}

// BookLessonResponse is the response for POST /api/v1/lessons.
type BookLessonResponse struct {
	Success bool          `json:"success"`
	Lesson  *model.Lesson `json:"lesson,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// handleBookLesson validates and books one lesson. The availability check and
// the insert run in a single transaction; rejections come back with a reason
// code and are never retried here.
// POST /api/v1/lessons
func (s *Server) handleBookLesson(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book_lesson")

	var req BookLessonRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TutorID <= 0 || req.StudentID <= 0 {
		writeError(w, http.StatusBadRequest, "tutor_id and student_id are required")
		return
	}
	if req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time; expected RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time; expected RFC 3339")
		return
	}

	lesson, err := s.db.BookLesson(r.Context(), req.TutorID, req.StudentID, start, end, req.DurationMinutes)
	if err != nil {
		var rejected *db.BookingRejectedError
		if errors.As(err, &rejected) {
			metrics.IncBookingRejected(string(rejected.Reason))
			writeJSON(w, rejectionStatus(rejected.Reason), BookLessonResponse{
				Success: false,
				Reason:  string(rejected.Reason),
			})
			return
		}
		s.log.Error().Err(err).
			Int64("tutor_id", req.TutorID).
			Str("start_time", req.StartTime).
			Msg("failed to book lesson")
		writeError(w, http.StatusInternalServerError, "failed to book lesson")
		return
	}

	metrics.IncLessonBooked()
	s.cache.Bump(r.Context(), req.TutorID)

	s.log.Info().
		Int64("lesson_id", lesson.ID).
		Int64("tutor_id", lesson.TutorID).
		Time("start_time", lesson.StartTime).
		Msg("lesson booked")

	writeJSON(w, http.StatusCreated, BookLessonResponse{Success: true, Lesson: lesson})
}

// handleCancelLesson cancels a lesson, freeing its slot.
// DELETE /api/v1/lessons/{lessonID}
func (s *Server) handleCancelLesson(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_lesson")

	lessonID, err := strconv.ParseInt(chi.URLParam(r, "lessonID"), 10, 64)
	if err != nil || lessonID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid lesson id")
		return
	}

	lesson, err := s.db.GetLesson(r.Context(), lessonID)
	if err != nil {
		writeError(w, http.StatusNotFound, "lesson not found")
		return
	}

	if err := s.db.CancelLesson(r.Context(), lessonID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.cache.Bump(r.Context(), lesson.TutorID)

	s.log.Info().Int64("lesson_id", lessonID).Msg("lesson cancelled")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func rejectionStatus(reason slots.Reason) int {
	switch reason {
	case slots.ReasonNoProfile:
		return http.StatusNotFound
	case slots.ReasonInvalidTimeWindow:
		return http.StatusBadRequest
	case slots.ReasonNotInAvailability:
		return http.StatusUnprocessableEntity
	case slots.ReasonConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
