package model

import "time"

// Lesson statuses. Only non-cancelled, non-expired lessons block slots.
const (
	LessonStatusPending   = "pending"
	LessonStatusConfirmed = "confirmed"
	LessonStatusCancelled = "cancelled"
	LessonStatusExpired   = "expired"
)

// Lesson is one booked lesson in the ledger. Times are UTC instants.
type Lesson struct {
	ID        int64     `json:"id"`
	TutorID   int64     `json:"tutor_id"`
	StudentID int64     `json:"student_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsBlocking reports whether the lesson participates in conflict checks.
func (l *Lesson) IsBlocking() bool {
	return l.Status != LessonStatusCancelled && l.Status != LessonStatusExpired
}

// OverlapsWindow is the half-open interval test: touching endpoints do not
// conflict.
func (l *Lesson) OverlapsWindow(start, end time.Time) bool {
	return start.Before(l.EndTime) && l.StartTime.Before(end)
}

// OverlapsWith reports whether two lessons occupy overlapping time.
func (l *Lesson) OverlapsWith(other *Lesson) bool {
	return l.OverlapsWindow(other.StartTime, other.EndTime)
}

// Duration returns the lesson length.
func (l *Lesson) Duration() time.Duration {
	return l.EndTime.Sub(l.StartTime)
}
