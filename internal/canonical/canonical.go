// Package canonical produces a deterministic JSON encoding: object keys are
// sorted at every depth and numbers are written in their shortest float64
// form, so 1, 1.0 and 1e0 encode identically.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes v and re-encodes the result so that equal values always
// produce equal bytes regardless of field or map ordering in the source.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return Normalize(raw)
}

// Normalize rewrites an already encoded JSON document into canonical form.
func Normalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode: trailing data after JSON value")
	}

	out, err := json.Marshal(foldZero(generic))
	if err != nil {
		return nil, fmt.Errorf("re-encode: %w", err)
	}
	return out, nil
}

// foldZero rewrites -0 as 0 at every depth.
func foldZero(v any) any {
	switch t := v.(type) {
	case float64:
		if t == 0 {
			return float64(0)
		}
	case []any:
		for i := range t {
			t[i] = foldZero(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = foldZero(t[k])
		}
	}
	return v
}
