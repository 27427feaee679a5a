package slots

import "tutorbook/internal/model"

// FilterConflicts drops every candidate that overlaps a blocking lesson.
// Pure: no side effects, inputs are not mutated. Touching endpoints do not
// conflict.
func FilterConflicts(candidates []model.CandidateSlot, lessons []model.Lesson) []model.CandidateSlot {
	if len(lessons) == 0 {
		return candidates
	}
	kept := make([]model.CandidateSlot, 0, len(candidates))
	for _, c := range candidates {
		if !conflicts(c, lessons) {
			kept = append(kept, c)
		}
	}
	return kept
}

func conflicts(c model.CandidateSlot, lessons []model.Lesson) bool {
	for i := range lessons {
		l := &lessons[i]
		if !l.IsBlocking() {
			continue
		}
		if c.Start.Before(l.EndTime) && l.StartTime.Before(c.End) {
			return true
		}
	}
	return false
}
