// Package evaluation grades heterogeneous question sets against an answer key.
//
// Grading is a pure fold: Evaluate builds one QuestionResult per question in
// input order and derives every aggregate from that list. Re-running it on the
// same inputs and clock yields identical output.
package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Version is stamped on every Result.
const Version = "2.0.0"

var (
	// ErrInvalidInput rejects a batch before any question is graded.
	ErrInvalidInput = errors.New("invalid evaluation input")
	ErrInvalidGrade = errors.New("invalid manual grade")
)

// Config tunes grading policy.
type Config struct {
	PartialCredit   bool
	NegativeMarking bool
	// MinTotalScore floors the auto-graded aggregate.
	MinTotalScore  float64
	Precision      int
	DefaultSection string
}

// DefaultConfig enables partial credit and negative marking, floors totals at
// zero and rounds to two places.
func DefaultConfig() Config {
	return Config{
		PartialCredit:   true,
		NegativeMarking: true,
		MinTotalScore:   0,
		Precision:       2,
		DefaultSection:  "default",
	}
}

// Answers maps question IDs to raw answer values.
type Answers map[string]json.RawMessage

// SectionScore aggregates the questions of one section.
type SectionScore struct {
	Score           float64 `json:"score"`
	MaxScore        float64 `json:"max_score"`
	QuestionsCount  int     `json:"questions_count"`
	AutoGradedCount int     `json:"auto_graded_count"`
}

// Result is the evaluation of one submission.
type Result struct {
	PseudonymHash       string                  `json:"pseudonym_hash,omitempty"`
	ExamID              string                  `json:"exam_id,omitempty"`
	TotalScore          float64                 `json:"total_score"`
	AutoScore           float64                 `json:"auto_score"`
	MaxScore            float64                 `json:"max_score"`
	Percentage          float64                 `json:"percentage"`
	Questions           []QuestionResult        `json:"question_scores"`
	SectionScores       map[string]SectionScore `json:"section_scores"`
	AutoGradedIDs       []string                `json:"auto_graded_ids"`
	ManualGradingIDs    []string                `json:"manual_grading_ids"`
	FailedIDs           []string                `json:"failed_ids"`
	ManualGradesApplied int                     `json:"manual_grades_applied"`
	EvaluatedAt         time.Time               `json:"evaluated_at"`
	EvaluatorVersion    string                  `json:"evaluator_version"`
}

// LedgerKey indexes evaluation objects by pseudonym hash.
func (r *Result) LedgerKey() string { return r.PseudonymHash }

// Evaluator grades submissions. It holds no mutable state and is safe for
// concurrent use.
type Evaluator struct {
	cfg Config
	now func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock replaces the clock used for EvaluatedAt.
func WithClock(now func() time.Time) Option { return func(e *Evaluator) { e.now = now } }

// New returns an Evaluator with cfg.
func New(cfg Config, opts ...Option) *Evaluator {
	if cfg.DefaultSection == "" {
		cfg.DefaultSection = "default"
	}
	if cfg.Precision < 0 {
		cfg.Precision = 0
	}
	e := &Evaluator{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the evaluator's grading policy.
func (e *Evaluator) Config() Config { return e.cfg }

func (e *Evaluator) section(q Question) string {
	if q.Section == "" {
		return e.cfg.DefaultSection
	}
	return q.Section
}

// Evaluate grades answers against questions. Invalid questions become
// zero-score entries listed in FailedIDs; only an empty question list or a
// nil answer map fails the call.
func (e *Evaluator) Evaluate(questions []Question, answers Answers) (*Result, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: question list is empty", ErrInvalidInput)
	}
	if answers == nil {
		return nil, fmt.Errorf("%w: answers must be an object", ErrInvalidInput)
	}

	results := make([]QuestionResult, len(questions))
	for i := range questions {
		results[i] = e.GradeQuestion(i, questions[i], answers[questions[i].ID])
	}

	res := e.fold(results)
	res.EvaluatedAt = e.now().UTC()
	res.EvaluatorVersion = Version
	return res, nil
}

// GradeQuestion validates and grades a single question. index is the
// question's position in its exam.
func (e *Evaluator) GradeQuestion(index int, q Question, answer json.RawMessage) QuestionResult {
	if verr := q.Validate(index); verr != nil {
		maxMarks := 0.0
		if q.decodeErr == nil && q.Marks >= 0 && !math.IsInf(q.Marks, 0) {
			maxMarks = q.Marks
		}
		return QuestionResult{
			QuestionID: q.ID,
			Type:       q.Type,
			Section:    e.section(q),
			MaxMarks:   maxMarks,
			Reason:     ReasonInvalidQuestion,
			Error:      verr.Error(),
		}
	}
	return e.grade(q, answer)
}

// fold derives every aggregate of a Result from its question results.
func (e *Evaluator) fold(questions []QuestionResult) *Result {
	res := &Result{
		Questions:        questions,
		SectionScores:    make(map[string]SectionScore),
		AutoGradedIDs:    make([]string, 0, len(questions)),
		ManualGradingIDs: make([]string, 0),
		FailedIDs:        make([]string, 0),
	}

	var autoSum, manualSum float64
	for _, qr := range questions {
		res.MaxScore += qr.MaxMarks

		sec := res.SectionScores[qr.Section]
		sec.MaxScore += qr.MaxMarks
		sec.QuestionsCount++

		switch {
		case qr.Reason == ReasonInvalidQuestion:
			res.FailedIDs = append(res.FailedIDs, qr.QuestionID)
		case qr.AutoGraded:
			autoSum += qr.Score
			sec.Score += qr.Score
			sec.AutoGradedCount++
			res.AutoGradedIDs = append(res.AutoGradedIDs, qr.QuestionID)
		default:
			res.ManualGradingIDs = append(res.ManualGradingIDs, qr.QuestionID)
			if qr.ManuallyGraded {
				manualSum += qr.Score
				sec.Score += qr.Score
				res.ManualGradesApplied++
			}
		}
		res.SectionScores[qr.Section] = sec
	}

	for name, sec := range res.SectionScores {
		sec.Score = e.round(sec.Score)
		sec.MaxScore = e.round(sec.MaxScore)
		res.SectionScores[name] = sec
	}

	res.AutoScore = e.round(max(e.cfg.MinTotalScore, autoSum))
	res.TotalScore = e.round(res.AutoScore + manualSum)
	res.MaxScore = e.round(res.MaxScore)
	if res.MaxScore > 0 {
		res.Percentage = e.round(res.TotalScore / res.MaxScore * 100)
	}
	return res
}

// round scales by 10^Precision and rounds half away from zero.
func (e *Evaluator) round(v float64) float64 {
	m := math.Pow(10, float64(e.cfg.Precision))
	return math.Round(v*m) / m
}

// MergeManualGrades applies human grades to questions awaiting manual grading
// and returns a new Result. Grades for any other question are ignored. A grade
// replaces, never adds to, an earlier grade for the same question, so merging
// the same grades twice yields the same totals.
func (e *Evaluator) MergeManualGrades(res *Result, grades map[string]float64) (*Result, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: result is nil", ErrInvalidInput)
	}

	questions := make([]QuestionResult, len(res.Questions))
	copy(questions, res.Questions)

	for i := range questions {
		qr := &questions[i]
		grade, ok := grades[qr.QuestionID]
		if !ok || !qr.RequiresManualGrading || qr.Reason == ReasonInvalidQuestion {
			continue
		}
		if math.IsNaN(grade) || math.IsInf(grade, 0) || grade < 0 || grade > qr.MaxMarks {
			return nil, fmt.Errorf("%w: question %s: %v outside [0, %v]", ErrInvalidGrade, qr.QuestionID, grade, qr.MaxMarks)
		}
		qr.Score = grade
		qr.ManuallyGraded = true
		qr.Correct = grade == qr.MaxMarks
		qr.PartialCredit = grade > 0 && grade < qr.MaxMarks
	}

	merged := e.fold(questions)
	merged.PseudonymHash = res.PseudonymHash
	merged.ExamID = res.ExamID
	merged.EvaluatedAt = res.EvaluatedAt
	merged.EvaluatorVersion = res.EvaluatorVersion
	return merged, nil
}
