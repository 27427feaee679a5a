package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorbook/internal/model"
)

// ErrProfileNotFound is returned by ProfileStore when a tutor has no profile.
var ErrProfileNotFound = errors.New("availability profile not found")

// ProfileStore loads availability profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, tutorID int64) (*model.AvailabilityProfile, error)
}

// LessonLedger reads blocking lessons for a tutor overlapping [from, to).
type LessonLedger interface {
	FindBlockingLessons(ctx context.Context, tutorID int64, from, to time.Time) ([]model.Lesson, error)
}

// Service composes the generator and the existing-booking filter into the
// read-only slot query used by the booking UI.
type Service struct {
	profiles ProfileStore
	lessons  LessonLedger
}

// NewService creates a slot query service.
func NewService(profiles ProfileStore, lessons LessonLedger) *Service {
	return &Service{profiles: profiles, lessons: lessons}
}

// Query returns the bookable start instants for the tutor over [fromDate,
// toDate], converted into displayTZ. A tutor with no profile simply has no
// availability: the result is empty, not an error. No write side effects.
func (s *Service) Query(ctx context.Context, tutorID int64, fromDate, toDate string, durationMin int, displayTZ string) ([]time.Time, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", durationMin)
	}
	displayLoc, err := time.LoadLocation(displayTZ)
	if err != nil {
		return nil, fmt.Errorf("unknown display timezone %q", displayTZ)
	}

	profile, err := s.profiles.GetProfile(ctx, tutorID)
	if errors.Is(err, ErrProfileNotFound) {
		return []time.Time{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	candidates, err := Generate(profile, fromDate, toDate, durationMin)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []time.Time{}, nil
	}

	windowFrom := candidates[0].Start
	windowTo := candidates[len(candidates)-1].End
	lessons, err := s.lessons.FindBlockingLessons(ctx, tutorID, windowFrom, windowTo)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}

	free := FilterConflicts(candidates, lessons)
	starts := make([]time.Time, 0, len(free))
	for _, c := range free {
		starts = append(starts, c.Start.In(displayLoc))
	}
	return starts, nil
}
