package worker

import (
	"testing"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
)

func TestDedupeLatestKeepsLastPerPseudonym(t *testing.T) {
	batch := []*evaluation.Result{
		{ExamID: "e1", PseudonymHash: "a", TotalScore: 1},
		{ExamID: "e1", PseudonymHash: "b", TotalScore: 2},
		{ExamID: "e1", PseudonymHash: "a", TotalScore: 3},
		{ExamID: "e2", PseudonymHash: "a", TotalScore: 4},
	}

	got := dedupeLatest(batch)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []float64{3, 2, 4}
	for i, res := range got {
		if res.TotalScore != want[i] {
			t.Fatalf("got[%d].TotalScore = %v, want %v", i, res.TotalScore, want[i])
		}
	}
}
