package services

import (
	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/shared"
)

// ApplyProgress merges a partial activity update into a guest progress
// record and returns a new value; current is never mutated, so concurrent
// readers of the prior snapshot stay safe. Set fields grow by union, the
// counters by non-negative deltas. Nothing is ever implicitly cleared here:
// clearing happens only through session termination or upgrade consumption.
func ApplyProgress(current *model.GuestProgress, update model.ProgressUpdate) (*model.GuestProgress, error) {
	if update.TimeSpentDelta < 0 {
		return nil, shared.NewFieldError("time_spent_delta", "delta must not be negative")
	}
	if update.PointsDelta < 0 {
		return nil, shared.NewFieldError("points_delta", "delta must not be negative")
	}

	next := current.Clone()
	if next == nil {
		next = model.NewGuestProgress()
	}

	next.LessonsViewed = unionIDs(next.LessonsViewed, update.LessonsViewed)
	next.QuizzesCompleted = unionIDs(next.QuizzesCompleted, update.QuizzesCompleted)
	next.ChallengesTried = unionIDs(next.ChallengesTried, update.ChallengesTried)
	next.SubjectsExplored = unionIDs(next.SubjectsExplored, update.SubjectsExplored)
	next.TimeSpentSeconds += update.TimeSpentDelta
	next.PointsEarned += update.PointsDelta

	return next, nil
}

// unionIDs appends the identifiers from add that current does not already
// contain, preserving first-seen order.
func unionIDs(current, add []string) []string {
	if len(add) == 0 {
		return current
	}

	seen := make(map[string]struct{}, len(current))
	for _, id := range current {
		seen[id] = struct{}{}
	}

	out := current
	for _, id := range add {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
