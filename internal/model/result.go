package model

import (
	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/ranking"
)

// ResultSource tells a reader where a result was read from.
type ResultSource string

const (
	ResultSourceLedger  ResultSource = "ledger"
	ResultSourcePending ResultSource = "pending"
)

// PublishedResult is what a test-taker reads back by pseudonym hash.
type PublishedResult struct {
	Source         ResultSource       `json:"source"`
	LedgerObjectID string             `json:"ledger_object_id,omitempty"`
	Ranked         *ranking.Ranked    `json:"ranked,omitempty"`
	Evaluation     *evaluation.Result `json:"evaluation,omitempty"`
}

// ManualGradesRequest applies human grades to free-text questions.
type ManualGradesRequest struct {
	Grades map[string]float64 `json:"grades" binding:"required,min=1"`
}

// EvaluateRequest grades an answer set without touching storage.
type EvaluateRequest struct {
	Questions     []evaluation.Question `json:"questions" binding:"required,min=1"`
	Answers       evaluation.Answers    `json:"answers" binding:"required"`
	PseudonymHash string                `json:"pseudonym_hash" binding:"omitempty,sha256hex"`
	ExamID        string                `json:"exam_id"`
}

// RankRequest ranks a set of results without touching storage.
type RankRequest struct {
	Results []evaluation.Result `json:"results" binding:"required"`
}

// PublishResponse is the leaderboard written to the ledger.
type PublishResponse struct {
	ExamID      string           `json:"exam_id"`
	Leaderboard []ranking.Ranked `json:"leaderboard"`
	LedgerIDs   []string         `json:"ledger_object_ids"`
}
