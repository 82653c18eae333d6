package examfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
)

const examYAML = `
exam_id: neet-mock-1
name: NEET Mock 1
questions:
  - id: q1
    type: mcq
    section: physics
    marks: 4
    negative_marks: 1
    options: [a, b, c, d]
    correct_answer: 1
  - id: q2
    type: match_following
    marks: 2
    correct_pairs:
      0: 1
      1: 0
  - id: q3
    type: fill_blanks
    marks: 2
    blanks:
      - answer: Paris
      - answer: France
        case_sensitive: true
  - id: q4
    type: descriptive
    marks: 5
    max_words: 200
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadExamYAML(t *testing.T) {
	exam, err := LoadExam(writeFile(t, "exam.yaml", examYAML))
	if err != nil {
		t.Fatalf("LoadExam: %v", err)
	}
	if exam.ExamID != "neet-mock-1" || len(exam.Questions) != 4 {
		t.Fatalf("unexpected exam %+v", exam)
	}

	q1 := exam.Questions[0]
	if q1.Type != evaluation.TypeSingleChoice || q1.Marks != 4 || q1.NegativeMarks != 1 {
		t.Fatalf("unexpected q1 %+v", q1)
	}
	if sc, ok := q1.Body.(evaluation.SingleChoice); !ok || sc.CorrectAnswer != 1 || len(sc.Options) != 4 {
		t.Fatalf("unexpected q1 body %#v", q1.Body)
	}

	m, ok := exam.Questions[1].Body.(evaluation.Matching)
	if !ok || m.CorrectPairs["0"] != 1 || m.CorrectPairs["1"] != 0 {
		t.Fatalf("expected integer yaml keys to become pair keys, got %#v", exam.Questions[1].Body)
	}

	fb, ok := exam.Questions[2].Body.(evaluation.FillInBlank)
	if !ok || len(fb.Blanks) != 2 || !fb.Blanks[1].CaseSensitive {
		t.Fatalf("unexpected blanks %#v", exam.Questions[2].Body)
	}

	for i, q := range exam.Questions {
		if verr := q.Validate(i); verr != nil {
			t.Fatalf("question %s invalid: %v", q.ID, verr)
		}
	}
}

func TestLoadAnswersAndEvaluate(t *testing.T) {
	exam, err := LoadExam(writeFile(t, "exam.yaml", examYAML))
	if err != nil {
		t.Fatalf("LoadExam: %v", err)
	}
	answers, err := LoadAnswers(writeFile(t, "answers.json", `{"q1":1,"q2":{"0":1,"1":0},"q3":["paris","France"],"q4":"short essay"}`))
	if err != nil {
		t.Fatalf("LoadAnswers: %v", err)
	}
	if string(answers["q1"]) != "1" {
		t.Fatalf("unexpected q1 answer %s", answers["q1"])
	}

	res, err := evaluation.New(evaluation.DefaultConfig()).Evaluate(exam.Questions, answers)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.TotalScore != 8 || res.MaxScore != 13 {
		t.Fatalf("expected 8/13, got %v/%v", res.TotalScore, res.MaxScore)
	}
}

func TestLoadResults(t *testing.T) {
	raw, _ := json.Marshal([]evaluation.Result{{PseudonymHash: "a", TotalScore: 3}, {PseudonymHash: "b", TotalScore: 5}})
	results, err := LoadResults(writeFile(t, "results.json", string(raw)))
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if len(results) != 2 || results[1].TotalScore != 5 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestLoadExamErrors(t *testing.T) {
	if _, err := LoadExam(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := LoadExam(writeFile(t, "empty.yaml", "exam_id: x\nquestions: []\n")); err == nil {
		t.Fatal("expected error for empty question list")
	}
	if _, err := LoadExam(writeFile(t, "bad.yaml", "questions: [\n")); err == nil {
		t.Fatal("expected parse error")
	}
}
