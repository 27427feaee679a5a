package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"tutorbook/internal/model"
	"tutorbook/internal/slots"
)

// BookingRejectedError is an expected, user-facing rejection of a booking
// attempt, carrying the reason code. It is not a store failure.
type BookingRejectedError struct {
	Reason slots.Reason
}

func (e *BookingRejectedError) Error() string {
	return fmt.Sprintf("booking rejected: %s", e.Reason)
}

// FindBlockingLessons returns non-cancelled, non-expired lessons for the tutor
// whose [start_time, end_time) intersects [from, to), ascending by start.
func (db *DB) FindBlockingLessons(ctx context.Context, tutorID int64, from, to time.Time) ([]model.Lesson, error) {
	return findBlockingLessons(ctx, db.DB, tutorID, from, to)
}

func findBlockingLessons(ctx context.Context, q querier, tutorID int64, from, to time.Time) ([]model.Lesson, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tutor_id, student_id, start_time, end_time, status, created_at, updated_at
		FROM lessons
		WHERE tutor_id = ?
		AND start_time < ? AND end_time > ?
		AND status NOT IN ('cancelled', 'expired')
		ORDER BY start_time`,
		tutorID, to.UTC(), from.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(
			&l.ID, &l.TutorID, &l.StudentID, &l.StartTime, &l.EndTime,
			&l.Status, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		l.StartTime = l.StartTime.UTC()
		l.EndTime = l.EndTime.UTC()
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// BookLesson validates the proposed window against the tutor's availability
// and existing lessons, then inserts the lesson — all inside one transaction,
// so two overlapping attempts cannot both observe "no conflict" and commit.
// The partial unique index on (tutor_id, start_time) backs this up; a
// constraint violation surfaces as a conflict rejection, not a store failure.
func (db *DB) BookLesson(ctx context.Context, tutorID, studentID int64, startUTC, endUTC time.Time, durationMin int) (*model.Lesson, error) {
	startUTC = startUTC.UTC()
	endUTC = endUTC.UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	profile, err := getProfile(ctx, tx, tutorID)
	if errors.Is(err, slots.ErrProfileNotFound) {
		return nil, &BookingRejectedError{Reason: slots.ReasonNoProfile}
	}
	if err != nil {
		return nil, err
	}

	// Lessons overlapping the proposed window's local calendar day.
	loc, err := profile.Location()
	if err != nil {
		return nil, fmt.Errorf("profile timezone: %w", err)
	}
	local := startUTC.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	lessons, err := findBlockingLessons(ctx, tx, tutorID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}

	decision, err := slots.ValidateProposal(profile, lessons, startUTC, endUTC, durationMin)
	if err != nil {
		return nil, err
	}
	if !decision.OK {
		return nil, &BookingRejectedError{Reason: decision.Reason}
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO lessons (tutor_id, student_id, start_time, end_time, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tutorID, studentID, startUTC, endUTC, model.LessonStatusConfirmed, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &BookingRejectedError{Reason: slots.ReasonConflict}
		}
		return nil, fmt.Errorf("insert lesson: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, &BookingRejectedError{Reason: slots.ReasonConflict}
		}
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &model.Lesson{
		ID:        id,
		TutorID:   tutorID,
		StudentID: studentID,
		StartTime: startUTC,
		EndTime:   endUTC,
		Status:    model.LessonStatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CancelLesson marks a lesson cancelled, freeing its slot.
func (db *DB) CancelLesson(ctx context.Context, lessonID int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE lessons
		SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status NOT IN ('cancelled', 'expired')`,
		time.Now().UTC(), lessonID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("lesson not found or already cancelled")
	}
	return nil
}

// GetLesson returns one lesson by id.
func (db *DB) GetLesson(ctx context.Context, lessonID int64) (*model.Lesson, error) {
	var l model.Lesson
	err := db.QueryRowContext(ctx, `
		SELECT id, tutor_id, student_id, start_time, end_time, status, created_at, updated_at
		FROM lessons WHERE id = ?`,
		lessonID,
	).Scan(&l.ID, &l.TutorID, &l.StudentID, &l.StartTime, &l.EndTime, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.StartTime = l.StartTime.UTC()
	l.EndTime = l.EndTime.UTC()
	return &l, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
