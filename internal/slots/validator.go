package slots

import (
	"time"

	"tutorbook/internal/model"
)

// Reason is a machine-readable booking rejection code.
type Reason string

const (
	ReasonNoProfile         Reason = "no_availability_profile"
	ReasonInvalidTimeWindow Reason = "invalid_time_window"
	ReasonNotInAvailability Reason = "not_in_availability"
	ReasonConflict          Reason = "conflict"
)

// Decision is the outcome of validating one proposed booking.
type Decision struct {
	OK     bool
	Reason Reason
}

func accepted() Decision         { return Decision{OK: true} }
func rejected(r Reason) Decision { return Decision{Reason: r} }

// ValidateProposal re-derives the single day's candidates for the proposed
// start and requires an exact start/end match, then applies the conflict test
// against the given lessons. It shares Generate with the browse path, so the
// two call sites cannot drift.
//
// The caller is responsible for running this at commit time, inside the same
// transaction as the lesson insert; a cached result is not a valid substitute.
func ValidateProposal(profile *model.AvailabilityProfile, lessons []model.Lesson, startUTC, endUTC time.Time, durationMin int) (Decision, error) {
	if profile == nil {
		return rejected(ReasonNoProfile), nil
	}
	if durationMin <= 0 || !startUTC.Before(endUTC) {
		return rejected(ReasonInvalidTimeWindow), nil
	}
	if !endUTC.Equal(startUTC.Add(time.Duration(durationMin) * time.Minute)) {
		return rejected(ReasonInvalidTimeWindow), nil
	}

	loc, err := profile.Location()
	if err != nil {
		return Decision{}, err
	}
	day := startUTC.In(loc).Format(model.DateFormat)

	candidates, err := Generate(profile, day, day, durationMin)
	if err != nil {
		return Decision{}, err
	}

	matched := false
	for _, c := range candidates {
		if c.Start.Equal(startUTC) && c.End.Equal(endUTC) {
			matched = true
			break
		}
	}
	if !matched {
		return rejected(ReasonNotInAvailability), nil
	}

	for i := range lessons {
		l := &lessons[i]
		if l.IsBlocking() && l.OverlapsWindow(startUTC, endUTC) {
			return rejected(ReasonConflict), nil
		}
	}
	return accepted(), nil
}
