package ranking

import (
	"fmt"
	"testing"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
)

func results(scores ...float64) []evaluation.Result {
	out := make([]evaluation.Result, len(scores))
	for i, s := range scores {
		out[i] = evaluation.Result{PseudonymHash: fmt.Sprintf("p%d", i), TotalScore: s}
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		ranks  []int
		order  []string
	}{
		{
			name:   "ties share rank and skip",
			scores: []float64{90, 90, 80, 70, 70, 70},
			ranks:  []int{1, 1, 3, 4, 4, 4},
			order:  []string{"p0", "p1", "p2", "p3", "p4", "p5"},
		},
		{
			name:   "unsorted input",
			scores: []float64{70, 90, 70, 80, 90, 70},
			ranks:  []int{1, 1, 3, 4, 4, 4},
			order:  []string{"p1", "p4", "p3", "p0", "p2", "p5"},
		},
		{
			name:   "all tied",
			scores: []float64{5, 5, 5},
			ranks:  []int{1, 1, 1},
			order:  []string{"p0", "p1", "p2"},
		},
		{
			name:   "distinct",
			scores: []float64{1, 3, 2},
			ranks:  []int{1, 2, 3},
			order:  []string{"p1", "p2", "p0"},
		},
		{
			name:   "single",
			scores: []float64{0},
			ranks:  []int{1},
			order:  []string{"p0"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Rank(results(tc.scores...))
			if len(got) != len(tc.scores) {
				t.Fatalf("expected %d entries, got %d", len(tc.scores), len(got))
			}
			for i, r := range got {
				if r.Rank != tc.ranks[i] {
					t.Fatalf("entry %d: expected rank %d, got %d", i, tc.ranks[i], r.Rank)
				}
				if r.PseudonymHash != tc.order[i] {
					t.Fatalf("entry %d: expected %s, got %s", i, tc.order[i], r.PseudonymHash)
				}
				if r.TotalStudents != len(tc.scores) {
					t.Fatalf("entry %d: expected total %d, got %d", i, len(tc.scores), r.TotalStudents)
				}
			}
		})
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(nil); len(got) != 0 {
		t.Fatalf("expected empty leaderboard, got %v", got)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := results(10, 30, 20)
	Rank(in)
	if in[0].TotalScore != 10 || in[1].TotalScore != 30 || in[2].TotalScore != 20 {
		t.Fatalf("input reordered: %v", in)
	}
}
