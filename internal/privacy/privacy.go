// Package privacy scans outbound payloads for literal leakage of a secret
// such as a wallet address.
package privacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuditFailed blocks transmission. It is not retryable.
	ErrAuditFailed = errors.New("privacy audit failed: payload contains wallet address")
	ErrEmptySecret = errors.New("privacy audit requires a non-empty secret")
)

// stripPrefixes are address prefixes that may be dropped when a secret is
// embedded elsewhere.
var stripPrefixes = []string{"0x"}

// AuditResult reports the outcome of a scan. Matched names the form that was
// found: "full" or "stripped".
type AuditResult struct {
	Passed  bool   `json:"passed"`
	Matched string `json:"matched,omitempty"`
}

// Audit serializes payload to JSON, case-folds it and looks for secret in full
// and with any known prefix stripped.
func Audit(payload any, secret string) (AuditResult, error) {
	secret = strings.ToLower(strings.TrimSpace(secret))
	if secret == "" {
		return AuditResult{}, ErrEmptySecret
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return AuditResult{}, fmt.Errorf("serialize payload: %w", err)
	}
	text := strings.ToLower(string(raw))

	if strings.Contains(text, secret) {
		return AuditResult{Passed: false, Matched: "full"}, nil
	}
	for _, prefix := range stripPrefixes {
		stripped := strings.TrimPrefix(secret, prefix)
		if stripped == secret || stripped == "" {
			continue
		}
		if strings.Contains(text, stripped) {
			return AuditResult{Passed: false, Matched: "stripped"}, nil
		}
	}
	return AuditResult{Passed: true}, nil
}

// Guard runs Audit and converts a failed scan into ErrAuditFailed. Callers
// must not transmit payload unless Guard returns nil.
func Guard(payload any, secret string) error {
	res, err := Audit(payload, secret)
	if err != nil {
		return err
	}
	if !res.Passed {
		return fmt.Errorf("%w (%s form)", ErrAuditFailed, res.Matched)
	}
	return nil
}
