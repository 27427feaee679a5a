package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func datetime(hour, min int) time.Time {
	return time.Date(2026, 1, 15, hour, min, 0, 0, time.UTC)
}

func TestLessonIsBlocking(t *testing.T) {
	assert.True(t, (&Lesson{Status: LessonStatusPending}).IsBlocking())
	assert.True(t, (&Lesson{Status: LessonStatusConfirmed}).IsBlocking())
	assert.False(t, (&Lesson{Status: LessonStatusCancelled}).IsBlocking())
	assert.False(t, (&Lesson{Status: LessonStatusExpired}).IsBlocking())
}

func TestLessonOverlapsWindow(t *testing.T) {
	l := &Lesson{StartTime: datetime(10, 0), EndTime: datetime(11, 0)}

	assert.True(t, l.OverlapsWindow(datetime(10, 30), datetime(11, 30)))
	assert.True(t, l.OverlapsWindow(datetime(9, 30), datetime(10, 30)))
	assert.True(t, l.OverlapsWindow(datetime(10, 15), datetime(10, 45)))
	assert.True(t, l.OverlapsWindow(datetime(9, 0), datetime(12, 0)))

	// Touching endpoints do not conflict.
	assert.False(t, l.OverlapsWindow(datetime(9, 0), datetime(10, 0)))
	assert.False(t, l.OverlapsWindow(datetime(11, 0), datetime(12, 0)))
}

func TestLessonOverlapsWith(t *testing.T) {
	a := &Lesson{StartTime: datetime(10, 0), EndTime: datetime(11, 0)}
	b := &Lesson{StartTime: datetime(10, 30), EndTime: datetime(11, 30)}
	c := &Lesson{StartTime: datetime(11, 0), EndTime: datetime(12, 0)}

	assert.True(t, a.OverlapsWith(b))
	assert.True(t, b.OverlapsWith(a))
	assert.False(t, a.OverlapsWith(c))
}

func TestLessonDuration(t *testing.T) {
	l := &Lesson{StartTime: datetime(10, 0), EndTime: datetime(11, 30)}
	assert.Equal(t, 90*time.Minute, l.Duration())
}
