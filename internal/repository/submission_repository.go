package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubmissionRepository handles submitted answer sets.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create stores a submission. A repeated (exam, pseudonym, answer hash)
// triple violates the unique constraint.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, pseudonym_hash, answer_hash, answers, ledger_object_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, submitted_at`,
		s.ExamID, s.PseudonymHash, s.AnswerHash, answers, s.LedgerObjectID,
	).Scan(&s.ID, &s.SubmittedAt)
}

// GetLatest returns the most recent submission of a pseudonym for an exam.
func (r *SubmissionRepository) GetLatest(ctx context.Context, examID, pseudonymHash string) (*model.Submission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, pseudonym_hash, answer_hash, answers, ledger_object_id::text, submitted_at
		 FROM submissions
		 WHERE exam_id = $1 AND pseudonym_hash = $2
		 ORDER BY submitted_at DESC LIMIT 1`, examID, pseudonymHash)
	return scanSubmission(row, true)
}

// ListByExamPaginated lists submissions of an exam without their answers.
func (r *SubmissionRepository) ListByExamPaginated(ctx context.Context, examID string, limit, offset int) ([]model.Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, pseudonym_hash, answer_hash, NULL::jsonb, ledger_object_id::text, submitted_at
		 FROM submissions
		 WHERE exam_id = $1
		 ORDER BY submitted_at ASC
		 LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subs := make([]model.Submission, 0, limit)
	for rows.Next() {
		s, err := scanSubmission(rows, false)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, *s)
	}
	return subs, total, rows.Err()
}

func scanSubmission(row pgx.Row, withAnswers bool) (*model.Submission, error) {
	s := &model.Submission{}
	var answers []byte
	if err := row.Scan(&s.ID, &s.ExamID, &s.PseudonymHash, &s.AnswerHash, &answers, &s.LedgerObjectID, &s.SubmittedAt); err != nil {
		return nil, err
	}
	if withAnswers && len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return s, nil
}
