package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Reasons recorded on a QuestionResult.
const (
	ReasonCorrect         = "correct"
	ReasonPartial         = "partial"
	ReasonWrong           = "wrong"
	ReasonUnanswered      = "unanswered"
	ReasonMalformedAnswer = "malformed_answer"
	ReasonManual          = "manual_grading"
	ReasonInvalidQuestion = "invalid_question"
)

// BlankResult is the per-blank outcome of a fill-in-blank question.
type BlankResult struct {
	Submitted string `json:"submitted"`
	Expected  string `json:"expected"`
	Correct   bool   `json:"correct"`
}

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	QuestionID            string       `json:"question_id"`
	Type                  QuestionType `json:"type"`
	Section               string       `json:"section"`
	MaxMarks              float64      `json:"max_marks"`
	Score                 float64      `json:"score"`
	AutoGraded            bool         `json:"auto_graded"`
	RequiresManualGrading bool         `json:"requires_manual_grading,omitempty"`
	ManuallyGraded        bool         `json:"manually_graded,omitempty"`
	Correct               bool         `json:"correct"`
	PartialCredit         bool         `json:"partial_credit"`
	Reason                string       `json:"reason"`
	Error                 string       `json:"error,omitempty"`

	Selected      []float64     `json:"selected,omitempty"`
	Expected      []int         `json:"expected,omitempty"`
	Blanks        []BlankResult `json:"blanks,omitempty"`
	MatchedPairs  int           `json:"matched_pairs,omitempty"`
	TotalPairs    int           `json:"total_pairs,omitempty"`
	WordCount     int           `json:"word_count,omitempty"`
	OverWordLimit bool          `json:"over_word_limit,omitempty"`
}

// isBlank reports an absent, null or empty-string answer.
func isBlank(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}

// grade scores a validated question. It never fails: malformed answers score
// zero and are marked with ReasonMalformedAnswer.
func (e *Evaluator) grade(q Question, answer json.RawMessage) QuestionResult {
	res := QuestionResult{
		QuestionID: q.ID,
		Type:       q.Type,
		Section:    e.section(q),
		MaxMarks:   q.Marks,
		AutoGraded: q.Type.AutoGradable(),
		Reason:     ReasonUnanswered,
	}

	if ft, ok := q.Body.(FreeText); ok {
		return gradeFreeText(res, ft, answer)
	}
	if isBlank(answer) {
		return res
	}

	switch b := q.Body.(type) {
	case SingleChoice:
		return e.gradeSingleChoice(res, q, b, answer)
	case MultiSelect:
		return e.gradeMultiSelect(res, q, b, answer)
	case TrueFalse:
		return e.gradeTrueFalse(res, q, b, answer)
	case FillInBlank:
		return e.gradeFillInBlank(res, q, b, answer)
	case Matching:
		return e.gradeMatching(res, q, b, answer)
	}

	res.AutoGraded = false
	res.Reason = ReasonInvalidQuestion
	res.Error = fmt.Sprintf("unsupported answer key %T", q.Body)
	return res
}

func malformed(res QuestionResult) QuestionResult {
	res.Score = 0
	res.Reason = ReasonMalformedAnswer
	return res
}

func (e *Evaluator) penalty(q Question) float64 {
	if !e.cfg.NegativeMarking {
		return 0
	}
	return q.NegativeMarks
}

func (e *Evaluator) gradeSingleChoice(res QuestionResult, q Question, b SingleChoice, answer json.RawMessage) QuestionResult {
	var picked float64
	if err := json.Unmarshal(answer, &picked); err != nil {
		return malformed(res)
	}
	res.Selected = []float64{picked}
	res.Expected = []int{b.CorrectAnswer}
	if picked == float64(b.CorrectAnswer) {
		res.Score, res.Correct, res.Reason = q.Marks, true, ReasonCorrect
		return res
	}
	res.Score, res.Reason = 0-e.penalty(q), ReasonWrong
	return res
}

func (e *Evaluator) gradeTrueFalse(res QuestionResult, q Question, b TrueFalse, answer json.RawMessage) QuestionResult {
	var picked bool
	if err := json.Unmarshal(answer, &picked); err != nil {
		return malformed(res)
	}
	if picked == b.CorrectAnswer {
		res.Score, res.Correct, res.Reason = q.Marks, true, ReasonCorrect
		return res
	}
	res.Score, res.Reason = 0-e.penalty(q), ReasonWrong
	return res
}

func (e *Evaluator) gradeMultiSelect(res QuestionResult, q Question, b MultiSelect, answer json.RawMessage) QuestionResult {
	var picked []float64
	if err := json.Unmarshal(answer, &picked); err != nil {
		return malformed(res)
	}

	selected := slices.Clone(picked)
	slices.Sort(selected)
	selected = slices.Compact(selected)

	expected := slices.Clone(b.CorrectAnswers)
	slices.Sort(expected)
	res.Selected, res.Expected = selected, expected

	hits, misses := 0, 0
	for _, s := range selected {
		if slices.Contains(expected, int(s)) && s == float64(int(s)) {
			hits++
		} else {
			misses++
		}
	}

	if hits == len(expected) && misses == 0 {
		res.Score, res.Correct, res.Reason = q.Marks, true, ReasonCorrect
		return res
	}

	partial := 0.0
	if e.cfg.PartialCredit {
		partial = float64(hits) / float64(len(expected)) * q.Marks
	}
	final := max(0, partial-float64(misses)*e.penalty(q))

	res.Score = final
	res.PartialCredit = final > 0
	res.Reason = ReasonWrong
	if res.PartialCredit {
		res.Reason = ReasonPartial
	}
	return res
}

func (e *Evaluator) gradeFillInBlank(res QuestionResult, q Question, b FillInBlank, answer json.RawMessage) QuestionResult {
	var entries []json.RawMessage
	if err := json.Unmarshal(answer, &entries); err != nil || len(entries) != len(b.Blanks) {
		return malformed(res)
	}

	submitted := make([]string, len(entries))
	for i, raw := range entries {
		if isBlank(raw) {
			continue
		}
		if err := json.Unmarshal(raw, &submitted[i]); err != nil {
			return malformed(res)
		}
	}

	correct := 0
	res.Blanks = make([]BlankResult, len(b.Blanks))
	for i, blank := range b.Blanks {
		got := strings.TrimSpace(submitted[i])
		want := strings.TrimSpace(blank.Answer)
		ok := got == want
		if !blank.CaseSensitive {
			ok = strings.EqualFold(got, want)
		}
		if ok {
			correct++
		}
		res.Blanks[i] = BlankResult{Submitted: submitted[i], Expected: blank.Answer, Correct: ok}
	}

	return e.proportional(res, q, correct, len(b.Blanks))
}

func (e *Evaluator) gradeMatching(res QuestionResult, q Question, b Matching, answer json.RawMessage) QuestionResult {
	var pairs map[string]json.RawMessage
	if err := json.Unmarshal(answer, &pairs); err != nil {
		return malformed(res)
	}

	matched := 0
	for left, right := range b.CorrectPairs {
		raw, ok := pairs[left]
		if !ok {
			continue
		}
		var picked float64
		if err := json.Unmarshal(raw, &picked); err == nil && picked == float64(right) {
			matched++
		}
	}
	res.MatchedPairs, res.TotalPairs = matched, len(b.CorrectPairs)

	return e.proportional(res, q, matched, len(b.CorrectPairs))
}

// proportional awards marks in proportion to correct parts, with no negative marking.
func (e *Evaluator) proportional(res QuestionResult, q Question, correct, total int) QuestionResult {
	if correct == total {
		res.Score, res.Correct, res.Reason = q.Marks, true, ReasonCorrect
		return res
	}
	res.Reason = ReasonWrong
	if e.cfg.PartialCredit && correct > 0 {
		res.Score = float64(correct) / float64(total) * q.Marks
		res.PartialCredit = res.Score > 0
		res.Reason = ReasonPartial
	}
	return res
}

func gradeFreeText(res QuestionResult, b FreeText, answer json.RawMessage) QuestionResult {
	res.AutoGraded = false
	res.RequiresManualGrading = true
	res.Reason = ReasonManual
	if isBlank(answer) {
		return res
	}

	var text string
	if err := json.Unmarshal(answer, &text); err != nil {
		res.Reason = ReasonMalformedAnswer
		return res
	}
	res.WordCount = len(strings.Fields(text))
	res.OverWordLimit = b.MaxWords > 0 && res.WordCount > b.MaxWords
	return res
}
