package evaluation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a structurally invalid question. It is recorded on
// the question's result and never aborts the batch.
type ValidationError struct {
	QuestionID string
	Index      int
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	id := e.QuestionID
	if id == "" {
		id = fmt.Sprintf("#%d", e.Index)
	}
	if e.Field == "" {
		return fmt.Sprintf("question %s: %s", id, e.Message)
	}
	return fmt.Sprintf("question %s: %s: %s", id, e.Field, e.Message)
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the question's common fields and its answer key. index is
// the question's position, used when the ID itself is missing.
func (q *Question) Validate(index int) *ValidationError {
	fail := func(field, msg string) *ValidationError {
		return &ValidationError{QuestionID: q.ID, Index: index, Field: field, Message: msg}
	}

	if q.ID == "" {
		return fail("id", "is required")
	}
	if q.decodeErr != nil {
		if errors.Is(q.decodeErr, errMissingMarks) {
			return fail("marks", "is required")
		}
		return fail("", q.decodeErr.Error())
	}
	if q.Type == "" {
		return fail("type", "is required")
	}
	if _, ok := ParseQuestionType(string(q.Type)); !ok {
		return fail("type", fmt.Sprintf("unknown question type %q", q.Type))
	}
	if err := structValidator.Struct(q); err != nil {
		return fromValidator(q, index, err)
	}
	if q.Body == nil {
		return fail("", "answer key is missing")
	}
	if got, _ := ParseQuestionType(string(q.Type)); q.Body.questionType() != got {
		return fail("type", fmt.Sprintf("answer key is for %s", q.Body.questionType()))
	}
	if err := structValidator.Struct(q.Body); err != nil {
		return fromValidator(q, index, err)
	}

	switch b := q.Body.(type) {
	case SingleChoice:
		if len(b.Options) > 0 && b.CorrectAnswer >= len(b.Options) {
			return fail("correct_answer", "is out of range of options")
		}
	case MultiSelect:
		for _, idx := range b.CorrectAnswers {
			if len(b.Options) > 0 && idx >= len(b.Options) {
				return fail("correct_answers", "contains an index out of range of options")
			}
		}
	}
	return nil
}

func fromValidator(q *Question, index int, err error) *ValidationError {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return &ValidationError{
			QuestionID: q.ID,
			Index:      index,
			Field:      fe.Field(),
			Message:    describeTag(fe),
		}
	}
	return &ValidationError{QuestionID: q.ID, Index: index, Message: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "unique":
		return "must not contain duplicates"
	}
	return "failed " + fe.Tag() + " check"
}
