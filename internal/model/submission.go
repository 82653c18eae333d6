package model

import (
	"time"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/submission"
)

// Submission is a stored answer set, keyed by pseudonym hash only.
type Submission struct {
	ID             int64              `json:"id"`
	ExamID         string             `json:"exam_id"`
	PseudonymHash  string             `json:"pseudonym_hash"`
	AnswerHash     string             `json:"answer_hash"`
	Answers        submission.Answers `json:"answers,omitempty"`
	LedgerObjectID string             `json:"ledger_object_id"`
	SubmittedAt    time.Time          `json:"submitted_at"`
}

// SubmitRequest carries the ledger payload and the answers it commits to.
type SubmitRequest struct {
	Payload submission.Payload `json:"payload" binding:"required"`
	Answers submission.Answers `json:"answers" binding:"required"`
}

// SubmitResponse is returned after a submission is recorded and graded.
type SubmitResponse struct {
	LedgerObjectID string             `json:"ledger_object_id"`
	Result         *evaluation.Result `json:"result"`
}

// SubmissionDetail is an evaluator's view of one submission.
type SubmissionDetail struct {
	Submission Submission         `json:"submission"`
	Result     *evaluation.Result `json:"result,omitempty"`
}

// Draft is one autosaved answer awaiting submission.
type Draft struct {
	ExamID        string `json:"exam_id"`
	PseudonymHash string `json:"pseudonym_hash"`
	QID           string `json:"q_id"`
	Answer        string `json:"answer"`
}
