package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Fallback tz database for hosts without one; profiles are keyed by IANA names.
	_ "time/tzdata"
)

// DateFormat is the calendar date layout used throughout the API.
const DateFormat = "2006-01-02"

// SlotStartPolicy controls how a range's raw start is aligned before stepping.
type SlotStartPolicy string

const (
	// SlotStartAnyOffset keeps the range start as-is.
	SlotStartAnyOffset SlotStartPolicy = "any_offset"
	// SlotStartSnapToHalfHour rounds the range start forward to the next :00 or :30.
	SlotStartSnapToHalfHour SlotStartPolicy = "snap_to_half_hour"
)

// SlotIntervals are the allowed steps (minutes) between consecutive slot starts.
var SlotIntervals = []int{15, 30, 45, 60}

// TimeRange is an open block of local clock time, "HH:mm" in the profile timezone.
type TimeRange struct {
	Start string `json:"start"` // "09:00"
	End   string `json:"end"`   // "17:30"
}

// Validate checks both clock times parse and start < end.
func (r TimeRange) Validate() error {
	sh, sm, err := ParseClock(r.Start)
	if err != nil {
		return fmt.Errorf("range start: %w", err)
	}
	eh, em, err := ParseClock(r.End)
	if err != nil {
		return fmt.Errorf("range end: %w", err)
	}
	if sh*60+sm >= eh*60+em {
		return fmt.Errorf("range start %s must be before end %s", r.Start, r.End)
	}
	return nil
}

// OnDate resolves the range to concrete instants on the given calendar day in loc.
func (r TimeRange) OnDate(year int, month time.Month, day int, loc *time.Location) (start, end time.Time) {
	sh, sm, _ := ParseClock(r.Start)
	eh, em, _ := ParseClock(r.End)
	start = time.Date(year, month, day, sh, sm, 0, 0, loc)
	end = time.Date(year, month, day, eh, em, 0, 0, loc)
	return start, end
}

// ParseClock parses "HH:mm" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// WeeklyRule is the recurring open hours for one day of week, 0 = Sunday.
type WeeklyRule struct {
	DayOfWeek int         `json:"day_of_week"`
	Ranges    []TimeRange `json:"ranges"`
}

// Validate checks the day index and every range.
func (w WeeklyRule) Validate() error {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0..6, got %d", w.DayOfWeek)
	}
	for _, r := range w.Ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DateException fully replaces the weekly rule for one calendar date.
// Closed means zero availability that day; otherwise only Ranges apply.
type DateException struct {
	Date   string      `json:"date"` // "2006-01-02" in the profile timezone
	Closed bool        `json:"closed"`
	Ranges []TimeRange `json:"ranges,omitempty"`
}

// Validate enforces the closed/open variant: a closed exception carries no ranges.
func (e DateException) Validate() error {
	if _, err := time.Parse(DateFormat, e.Date); err != nil {
		return fmt.Errorf("exception date: %w", err)
	}
	if e.Closed && len(e.Ranges) > 0 {
		return fmt.Errorf("closed exception for %s must not carry ranges", e.Date)
	}
	for _, r := range e.Ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AvailabilityProfile describes when a tutor accepts lessons. One per tutor,
// mutated only by that tutor.
type AvailabilityProfile struct {
	TutorID         int64           `json:"tutor_id"`
	Timezone        string          `json:"timezone"`
	SlotInterval    int             `json:"slot_interval"`
	SlotStartPolicy SlotStartPolicy `json:"slot_start_policy"`
	Weekly          []WeeklyRule    `json:"weekly"`
	Exceptions      []DateException `json:"exceptions"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// Validate checks the whole profile document.
func (p *AvailabilityProfile) Validate() error {
	if p.TutorID <= 0 {
		return fmt.Errorf("tutor_id is required")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q", p.Timezone)
	}
	if !validInterval(p.SlotInterval) {
		return fmt.Errorf("slot_interval must be one of %v, got %d", SlotIntervals, p.SlotInterval)
	}
	switch p.SlotStartPolicy {
	case SlotStartAnyOffset, SlotStartSnapToHalfHour:
	default:
		return fmt.Errorf("unknown slot_start_policy %q", p.SlotStartPolicy)
	}
	seen := make(map[int]bool, len(p.Weekly))
	for _, w := range p.Weekly {
		if err := w.Validate(); err != nil {
			return err
		}
		if seen[w.DayOfWeek] {
			return fmt.Errorf("duplicate weekly rule for day %d", w.DayOfWeek)
		}
		seen[w.DayOfWeek] = true
	}
	dates := make(map[string]bool, len(p.Exceptions))
	for _, e := range p.Exceptions {
		if err := e.Validate(); err != nil {
			return err
		}
		if dates[e.Date] {
			return fmt.Errorf("duplicate exception for date %s", e.Date)
		}
		dates[e.Date] = true
	}
	return nil
}

// Location resolves the profile's IANA timezone.
func (p *AvailabilityProfile) Location() (*time.Location, error) {
	return time.LoadLocation(p.Timezone)
}

// EffectiveRanges resolves the open ranges for one calendar day. An exception
// for the date wins outright; otherwise the weekly rule for the day-of-week
// applies (0 = Sunday). Both the browse and the validate paths go through here.
func (p *AvailabilityProfile) EffectiveRanges(date time.Time) []TimeRange {
	key := date.Format(DateFormat)
	for _, e := range p.Exceptions {
		if e.Date == key {
			if e.Closed {
				return nil
			}
			return e.Ranges
		}
	}
	dow := int(date.Weekday())
	for _, w := range p.Weekly {
		if w.DayOfWeek == dow {
			return w.Ranges
		}
	}
	return nil
}

func validInterval(n int) bool {
	for _, v := range SlotIntervals {
		if v == n {
			return true
		}
	}
	return false
}

// CandidateSlot is a generated bookable start/end pair, both UTC. Ephemeral;
// never persisted.
type CandidateSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
