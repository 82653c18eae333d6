package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// QuestionType names a grading variant.
type QuestionType string

const (
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiSelect  QuestionType = "multi_select"
	TypeTrueFalse    QuestionType = "true_false"
	TypeFreeText     QuestionType = "free_text"
	TypeFillInBlank  QuestionType = "fill_in_blank"
	TypeMatching     QuestionType = "matching"
)

// typeAliases maps legacy exam-authoring names onto the canonical types.
var typeAliases = map[string]QuestionType{
	"mcq":              TypeSingleChoice,
	"single_choice":    TypeSingleChoice,
	"multiple_correct": TypeMultiSelect,
	"multi_select":     TypeMultiSelect,
	"true_false":       TypeTrueFalse,
	"descriptive":      TypeFreeText,
	"free_text":        TypeFreeText,
	"fill_blanks":      TypeFillInBlank,
	"fill_in_blank":    TypeFillInBlank,
	"match_following":  TypeMatching,
	"matching":         TypeMatching,
}

// ParseQuestionType resolves a type name or alias. The second result is
// false for unknown names.
func ParseQuestionType(s string) (QuestionType, bool) {
	t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// AutoGradable reports whether answers of this type are scored mechanically.
func (t QuestionType) AutoGradable() bool {
	return t != TypeFreeText
}

// Question is one authored exam item. Body holds the type-specific answer key.
type Question struct {
	ID            string       `json:"id" validate:"required"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text,omitempty"`
	Section       string       `json:"section,omitempty"`
	Marks         float64      `json:"marks" validate:"gte=0"`
	NegativeMarks float64      `json:"negative_marks" validate:"gte=0"`
	Body          Body         `json:"-"`

	// decodeErr is set when the question could not be decoded structurally.
	// Validate reports it so the rest of the batch still grades.
	decodeErr error
}

// Body is the sum of per-type answer keys.
type Body interface {
	questionType() QuestionType
}

type SingleChoice struct {
	Options       []string `json:"options,omitempty"`
	CorrectAnswer int      `json:"correct_answer" validate:"gte=0"`
}

type MultiSelect struct {
	Options        []string `json:"options,omitempty"`
	CorrectAnswers []int    `json:"correct_answers" validate:"min=1,unique,dive,gte=0"`
}

type TrueFalse struct {
	CorrectAnswer bool `json:"correct_answer"`
}

type FreeText struct {
	MaxWords int `json:"max_words,omitempty" validate:"gte=0"`
}

type FillInBlank struct {
	Blanks []Blank `json:"blanks" validate:"min=1,dive"`
}

type Blank struct {
	Answer        string `json:"answer" validate:"required"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

type Matching struct {
	LeftColumn   []string       `json:"left_column,omitempty"`
	RightColumn  []string       `json:"right_column,omitempty"`
	CorrectPairs map[string]int `json:"correct_pairs" validate:"min=1"`
	Shuffle      bool           `json:"shuffle,omitempty"`
}

func (SingleChoice) questionType() QuestionType { return TypeSingleChoice }
func (MultiSelect) questionType() QuestionType  { return TypeMultiSelect }
func (TrueFalse) questionType() QuestionType    { return TypeTrueFalse }
func (FreeText) questionType() QuestionType     { return TypeFreeText }
func (FillInBlank) questionType() QuestionType  { return TypeFillInBlank }
func (Matching) questionType() QuestionType     { return TypeMatching }

// questionWire is the flat on-disk and on-the-wire form of a Question.
type questionWire struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Text           string          `json:"text,omitempty"`
	Section        string          `json:"section,omitempty"`
	Marks          *float64        `json:"marks"`
	NegativeMarks  float64         `json:"negative_marks,omitempty"`
	Options        []string        `json:"options,omitempty"`
	CorrectAnswer  json.RawMessage `json:"correct_answer,omitempty"`
	CorrectAnswers []int           `json:"correct_answers,omitempty"`
	MaxWords       int             `json:"max_words,omitempty"`
	Blanks         []Blank         `json:"blanks,omitempty"`
	LeftColumn     []string        `json:"left_column,omitempty"`
	RightColumn    []string        `json:"right_column,omitempty"`
	CorrectPairs   map[string]int  `json:"correct_pairs,omitempty"`
	Shuffle        bool            `json:"shuffle,omitempty"`
}

var errMissingMarks = errors.New("marks is required")

// UnmarshalJSON decodes the flat form. Structural problems are kept on the
// question instead of failing the decode, so one bad item cannot reject a
// whole question list.
func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		var head struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &head)
		*q = Question{ID: head.ID, Type: QuestionType(head.Type), decodeErr: err}
		return nil
	}

	*q = Question{
		ID:            w.ID,
		Type:          QuestionType(w.Type),
		Text:          w.Text,
		Section:       w.Section,
		NegativeMarks: w.NegativeMarks,
	}
	if w.Marks == nil {
		q.decodeErr = errMissingMarks
	} else {
		q.Marks = *w.Marks
	}

	t, ok := ParseQuestionType(w.Type)
	if !ok {
		return nil // Validate reports the unknown type
	}
	q.Type = t

	body, err := w.body(t)
	if err != nil && q.decodeErr == nil {
		q.decodeErr = err
	}
	q.Body = body
	return nil
}

func (w *questionWire) body(t QuestionType) (Body, error) {
	switch t {
	case TypeSingleChoice:
		var idx int
		if len(w.CorrectAnswer) == 0 {
			return nil, errors.New("correct_answer is required")
		}
		if err := json.Unmarshal(w.CorrectAnswer, &idx); err != nil {
			return nil, fmt.Errorf("correct_answer must be an option index")
		}
		return SingleChoice{Options: w.Options, CorrectAnswer: idx}, nil
	case TypeMultiSelect:
		return MultiSelect{Options: w.Options, CorrectAnswers: w.CorrectAnswers}, nil
	case TypeTrueFalse:
		var b bool
		if len(w.CorrectAnswer) == 0 {
			return nil, errors.New("correct_answer is required")
		}
		if err := json.Unmarshal(w.CorrectAnswer, &b); err != nil {
			return nil, fmt.Errorf("correct_answer must be a boolean")
		}
		return TrueFalse{CorrectAnswer: b}, nil
	case TypeFreeText:
		return FreeText{MaxWords: w.MaxWords}, nil
	case TypeFillInBlank:
		return FillInBlank{Blanks: w.Blanks}, nil
	case TypeMatching:
		return Matching{
			LeftColumn:   w.LeftColumn,
			RightColumn:  w.RightColumn,
			CorrectPairs: w.CorrectPairs,
			Shuffle:      w.Shuffle,
		}, nil
	}
	return nil, fmt.Errorf("unknown question type %q", t)
}

// MarshalJSON writes the flat form read by UnmarshalJSON.
func (q Question) MarshalJSON() ([]byte, error) {
	marks := q.Marks
	w := questionWire{
		ID:            q.ID,
		Type:          string(q.Type),
		Text:          q.Text,
		Section:       q.Section,
		Marks:         &marks,
		NegativeMarks: q.NegativeMarks,
	}

	switch b := q.Body.(type) {
	case SingleChoice:
		w.Options = b.Options
		w.CorrectAnswer, _ = json.Marshal(b.CorrectAnswer)
	case MultiSelect:
		w.Options = b.Options
		w.CorrectAnswers = b.CorrectAnswers
	case TrueFalse:
		w.CorrectAnswer, _ = json.Marshal(b.CorrectAnswer)
	case FreeText:
		w.MaxWords = b.MaxWords
	case FillInBlank:
		w.Blanks = b.Blanks
	case Matching:
		w.LeftColumn = b.LeftColumn
		w.RightColumn = b.RightColumn
		w.CorrectPairs = b.CorrectPairs
		w.Shuffle = b.Shuffle
	}
	return json.Marshal(w)
}
