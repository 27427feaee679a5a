package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorbook/internal/cache"
	"tutorbook/internal/db"
	"tutorbook/internal/slots"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	logger := zerolog.Nop()
	slotService := slots.NewService(database, database)
	return NewServer(database, slotService, cache.New(nil, 0), &logger, 90, 1000)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// 2026-01-15 is a Thursday; 09:00 Europe/Berlin is 08:00Z in January.
func putProfile(t *testing.T, router http.Handler) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPut, "/api/v1/tutors/1/availability", map[string]any{
		"timezone":          "Europe/Berlin",
		"slot_interval":     30,
		"slot_start_policy": "any_offset",
		"weekly": []map[string]any{
			{"day_of_week": 4, "ranges": []map[string]string{{"start": "09:00", "end": "10:00"}}},
		},
		"exceptions": []map[string]any{},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGetProfileEmptyWhenMissing(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tutors/1/availability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestProfileLifecycle(t *testing.T) {
	router := newTestServer(t).Router()
	putProfile(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tutors/1/availability", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Europe/Berlin", got["timezone"])
	assert.Equal(t, float64(30), got["slot_interval"])
}

func TestPutProfileRejectsInvalid(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPut, "/api/v1/tutors/1/availability", map[string]any{
		"timezone":          "Nowhere/Invalid",
		"slot_interval":     30,
		"slot_start_policy": "any_offset",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuerySlots(t *testing.T) {
	router := newTestServer(t).Router()
	putProfile(t, router)

	rec := doJSON(t, router, http.MethodGet,
		"/api/v1/slots?tutor_id=1&from=2026-01-15&to=2026-01-15&duration_minutes=30&display_timezone=Europe/Berlin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 2)
	assert.Equal(t, "2026-01-15T09:00:00+01:00", resp.Slots[0])
	assert.Equal(t, "2026-01-15T09:30:00+01:00", resp.Slots[1])
}

func TestQuerySlotsEmptyForUnknownTutor(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodGet,
		"/api/v1/slots?tutor_id=42&from=2026-01-15&to=2026-01-15&duration_minutes=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Slots)
}

func TestQuerySlotsValidation(t *testing.T) {
	router := newTestServer(t).Router()

	cases := map[string]string{
		"missing tutor":    "/api/v1/slots?from=2026-01-15&to=2026-01-15&duration_minutes=30",
		"missing from":     "/api/v1/slots?tutor_id=1&to=2026-01-15&duration_minutes=30",
		"inverted range":   "/api/v1/slots?tutor_id=1&from=2026-01-16&to=2026-01-15&duration_minutes=30",
		"zero duration":    "/api/v1/slots?tutor_id=1&from=2026-01-15&to=2026-01-15&duration_minutes=0",
		"range too wide":   "/api/v1/slots?tutor_id=1&from=2026-01-15&to=2027-01-15&duration_minutes=30",
		"unknown timezone": "/api/v1/slots?tutor_id=1&from=2026-01-15&to=2026-01-15&duration_minutes=30&display_timezone=Bad/Zone",
	}
	for name, path := range cases {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestExceptionOverridesSlots(t *testing.T) {
	router := newTestServer(t).Router()
	putProfile(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tutors/1/availability/exceptions", map[string]any{
		"date":   "2026-01-15",
		"closed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet,
		"/api/v1/slots?tutor_id=1&from=2026-01-15&to=2026-01-15&duration_minutes=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Slots)

	// Deleting the exception restores the weekly rule.
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/tutors/1/availability/exceptions/2026-01-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet,
		"/api/v1/slots?tutor_id=1&from=2026-01-15&to=2026-01-15&duration_minutes=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Slots, 2)
}

func TestUpsertExceptionWithoutProfile(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tutors/7/availability/exceptions", map[string]any{
		"date":   "2026-01-15",
		"closed": true,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	router := newTestServer(t).Router()
	putProfile(t, router)

	book := func(start, end string, duration int) *httptest.ResponseRecorder {
		return doJSON(t, router, http.MethodPost, "/api/v1/lessons", map[string]any{
			"tutor_id":         1,
			"student_id":       100,
			"start_time":       start,
			"end_time":         end,
			"duration_minutes": duration,
		})
	}

	// Aligned slot books once.
	rec := book("2026-01-15T08:00:00Z", "2026-01-15T08:30:00Z", 30)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp BookLessonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Lesson)
	lessonID := resp.Lesson.ID

	// The identical window now conflicts.
	rec = book("2026-01-15T08:00:00Z", "2026-01-15T08:30:00Z", 30)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp.Reason)

	// A window that fits the range but not the grid is rejected.
	rec = book("2026-01-15T08:05:00Z", "2026-01-15T08:35:00Z", 30)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_in_availability", resp.Reason)

	// Booked slot disappears from the query.
	rec = doJSON(t, router, http.MethodGet,
		"/api/v1/slots?tutor_id=1&from=2026-01-15&to=2026-01-15&duration_minutes=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var slotsResp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slotsResp))
	require.Len(t, slotsResp.Slots, 1)
	assert.Equal(t, "2026-01-15T08:30:00Z", slotsResp.Slots[0])

	// Cancelling frees the slot again.
	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/lessons/%d", lessonID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = book("2026-01-15T08:00:00Z", "2026-01-15T08:30:00Z", 30)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBookingForTutorWithoutProfile(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/lessons", map[string]any{
		"tutor_id":         5,
		"student_id":       100,
		"start_time":       "2026-01-15T08:00:00Z",
		"end_time":         "2026-01-15T08:30:00Z",
		"duration_minutes": 30,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp BookLessonResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no_availability_profile", resp.Reason)
}

func TestBookingMalformedBody(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/lessons", map[string]any{
		"tutor_id":         1,
		"student_id":       100,
		"start_time":       "not-a-time",
		"end_time":         "2026-01-15T08:30:00Z",
		"duration_minutes": 30,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/lessons", map[string]any{
		"tutor_id":         1,
		"student_id":       100,
		"start_time":       "2026-01-15T08:00:00Z",
		"end_time":         "2026-01-15T08:30:00Z",
		"duration_minutes": -5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelUnknownLesson(t *testing.T) {
	router := newTestServer(t).Router()

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/lessons/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
