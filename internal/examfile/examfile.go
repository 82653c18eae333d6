// Package examfile loads question sets, answer sets and result sets from YAML
// or JSON files.
package examfile

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
)

// Exam is an authored question set.
type Exam struct {
	ExamID    string                `json:"exam_id"`
	Name      string                `json:"name"`
	Questions []evaluation.Question `json:"questions"`
}

// LoadExam reads an exam definition from path.
func LoadExam(path string) (*Exam, error) {
	var exam Exam
	if err := load(path, &exam); err != nil {
		return nil, err
	}
	if len(exam.Questions) == 0 {
		return nil, fmt.Errorf("%s: no questions", path)
	}
	return &exam, nil
}

// LoadAnswers reads a question-id to answer mapping from path.
func LoadAnswers(path string) (evaluation.Answers, error) {
	answers := evaluation.Answers{}
	if err := load(path, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// LoadResults reads a list of evaluation results from path.
func LoadResults(path string) ([]evaluation.Result, error) {
	var results []evaluation.Result
	if err := load(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func load(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := Decode(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Decode parses YAML (and therefore JSON) into dst through its JSON form, so
// dst's json tags and UnmarshalJSON methods apply.
func Decode(data []byte, dst any) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	raw, err := json.Marshal(toJSONCompatible(doc))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// toJSONCompatible rewrites YAML maps with non-string keys, such as the
// integer keys of matching pairs, into string-keyed maps.
func toJSONCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = toJSONCompatible(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = toJSONCompatible(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = toJSONCompatible(t[i])
		}
		return t
	}
	return v
}
