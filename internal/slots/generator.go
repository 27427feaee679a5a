package slots

import (
	"fmt"
	"sort"
	"time"

	"tutorbook/internal/model"
)

// Generate produces the ordered list of bookable candidate slots for the
// profile over the inclusive calendar window [fromDate, toDate], both given as
// "YYYY-MM-DD" in the profile's timezone. Candidates are UTC instants in
// ascending start order.
//
// Overlapping ranges within one day may yield duplicate candidates; callers
// that care must deduplicate themselves.
func Generate(profile *model.AvailabilityProfile, fromDate, toDate string, durationMin int) ([]model.CandidateSlot, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", durationMin)
	}
	loc, err := profile.Location()
	if err != nil {
		return nil, fmt.Errorf("profile timezone: %w", err)
	}

	from, err := time.Parse(model.DateFormat, fromDate)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := time.Parse(model.DateFormat, toDate)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w", err)
	}
	if from.After(to) {
		return nil, fmt.Errorf("from date %s is after to date %s", fromDate, toDate)
	}

	step := time.Duration(profile.SlotInterval) * time.Minute
	duration := time.Duration(durationMin) * time.Minute

	var candidates []model.CandidateSlot
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		for _, r := range profile.EffectiveRanges(d) {
			start, end := r.OnDate(d.Year(), d.Month(), d.Day(), loc)
			if profile.SlotStartPolicy == model.SlotStartSnapToHalfHour {
				start = snapToHalfHour(start)
			}
			for cursor := start; !cursor.Add(duration).After(end); cursor = cursor.Add(step) {
				candidates = append(candidates, model.CandidateSlot{
					Start: cursor.UTC(),
					End:   cursor.Add(duration).UTC(),
				})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})
	return candidates, nil
}

// snapToHalfHour rounds t forward to the next :00 or :30 boundary. A time
// already on a boundary is unchanged.
func snapToHalfHour(t time.Time) time.Time {
	rem := t.Minute() % 30
	if rem == 0 {
		return t
	}
	return t.Add(time.Duration(30-rem) * time.Minute)
}
