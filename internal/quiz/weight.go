package quiz

import (
	"slices"

	"github.com/m3rciful/quizbot/internal/question"
)

// WeightFunc builds the sampling pool for a run from the genre's ids and
// the ids missed in earlier runs. Repeated entries raise selection odds.
type WeightFunc func(ids, missed []question.ID) []question.ID

// Uniform gives every id a single entry.
func Uniform(ids, _ []question.ID) []question.ID {
	return slices.Clone(ids)
}

// Replicate puts every previously missed id into the pool times times in
// total. Missed ids that are no longer in the genre are ignored.
// A times below 2 yields Uniform.
func Replicate(times int) WeightFunc {
	if times <= 1 {
		return Uniform
	}
	return func(ids, missed []question.ID) []question.ID {
		pool := slices.Clone(ids)
		if len(missed) == 0 {
			return pool
		}
		seen := make(map[question.ID]struct{}, len(missed))
		for _, id := range missed {
			if _, dup := seen[id]; dup || !slices.Contains(ids, id) {
				continue
			}
			seen[id] = struct{}{}
			for i := 1; i < times; i++ {
				pool = append(pool, id)
			}
		}
		return pool
	}
}
