package model

import (
	"time"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
)

// AnswerKey is the full question set of an exam, answers included.
type AnswerKey struct {
	ExamID     string                `json:"exam_id"`
	Questions  []evaluation.Question `json:"questions"`
	UploadedBy int                   `json:"uploaded_by"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// PutAnswerKeyRequest replaces an exam's answer key.
type PutAnswerKeyRequest struct {
	Questions []evaluation.Question `json:"questions" binding:"required,min=1"`
}

// RegisterExamRequest claims a registry name for an exam.
type RegisterExamRequest struct {
	ExamName string            `json:"exam_name" binding:"required,min=3,max=120"`
	ExamID   string            `json:"exam_id" binding:"required,max=128"`
	ExamFee  string            `json:"exam_fee" binding:"omitempty,numeric"`
	Metadata map[string]string `json:"metadata"`
}
