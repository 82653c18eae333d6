// Package ranking turns finalized evaluation results into a competition
// leaderboard.
package ranking

import (
	"cmp"
	"slices"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
)

// Ranked is an evaluation result placed on the leaderboard.
type Ranked struct {
	evaluation.Result
	Rank          int `json:"rank"`
	TotalStudents int `json:"total_students"`
}

// LedgerKey indexes ranked results by pseudonym hash.
func (r *Ranked) LedgerKey() string { return r.PseudonymHash }

// Rank orders results by total score, highest first, and assigns standard
// competition ranks ("1224"): tied scores share a rank and the next distinct
// score skips the size of the tie. Ties keep their input order. The input
// slice is not modified.
func Rank(results []evaluation.Result) []Ranked {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b evaluation.Result) int {
		return cmp.Compare(b.TotalScore, a.TotalScore)
	})

	ranked := make([]Ranked, len(sorted))
	rank, tier := 1, 0
	for i, r := range sorted {
		if i > 0 && r.TotalScore < sorted[i-1].TotalScore {
			rank += tier
			tier = 1
		} else {
			tier++
		}
		ranked[i] = Ranked{Result: r, Rank: rank, TotalStudents: len(results)}
	}
	return ranked
}
