// Package submission binds an answer set to a pseudonym hash. The payload it
// builds is the only submission artefact that leaves the device.
package submission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fairtest/fairtest-backend/internal/canonical"
)

var (
	ErrAnswerHashMismatch = errors.New("answer hash does not match answers")
	ErrMissingPseudonym   = errors.New("pseudonym hash is required")
	ErrMissingExamID      = errors.New("exam id is required")
	ErrMalformedHash      = errors.New("hash must be 64 lowercase hex characters")
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Answers maps question IDs to raw answer values.
type Answers map[string]json.RawMessage

// Payload is the four-field record written to the ledger.
type Payload struct {
	PseudonymHash string `json:"pseudonym_hash" binding:"required,sha256hex"`
	ExamID        string `json:"exam_id" binding:"required"`
	AnswerHash    string `json:"answer_hash" binding:"required,sha256hex"`
	Timestamp     int64  `json:"timestamp" binding:"required,gt=0"` // unix milliseconds
}

// LedgerKey indexes submission objects by pseudonym hash.
func (p Payload) LedgerKey() string { return p.PseudonymHash }

// Builder creates payloads with an injectable clock.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a Builder on the wall clock. A nil now keeps time.Now.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build hashes answers canonically and returns the payload. It has no side effects.
func (b *Builder) Build(pseudonymHash, examID string, answers Answers) (*Payload, error) {
	if pseudonymHash == "" {
		return nil, ErrMissingPseudonym
	}
	if !hexDigest.MatchString(pseudonymHash) {
		return nil, fmt.Errorf("pseudonym hash: %w", ErrMalformedHash)
	}
	if examID == "" {
		return nil, ErrMissingExamID
	}

	answerHash, err := HashAnswers(answers)
	if err != nil {
		return nil, err
	}

	return &Payload{
		PseudonymHash: pseudonymHash,
		ExamID:        examID,
		AnswerHash:    answerHash,
		Timestamp:     b.now().UnixMilli(),
	}, nil
}

// HashAnswers returns the hex SHA-256 of the canonical encoding of answers.
// A nil map hashes like an empty one.
func HashAnswers(answers Answers) (string, error) {
	if answers == nil {
		answers = Answers{}
	}
	encoded, err := canonical.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyAnswers checks that answers hash to the payload's answer hash.
func (p *Payload) VerifyAnswers(answers Answers) error {
	got, err := HashAnswers(answers)
	if err != nil {
		return err
	}
	if got != p.AnswerHash {
		return ErrAnswerHashMismatch
	}
	return nil
}

// Validate checks the payload's shape without looking at any answers.
func (p *Payload) Validate() error {
	if p.PseudonymHash == "" {
		return ErrMissingPseudonym
	}
	if !hexDigest.MatchString(p.PseudonymHash) {
		return fmt.Errorf("pseudonym hash: %w", ErrMalformedHash)
	}
	if p.ExamID == "" {
		return ErrMissingExamID
	}
	if !hexDigest.MatchString(p.AnswerHash) {
		return fmt.Errorf("answer hash: %w", ErrMalformedHash)
	}
	if p.Timestamp <= 0 {
		return errors.New("timestamp must be positive")
	}
	return nil
}
