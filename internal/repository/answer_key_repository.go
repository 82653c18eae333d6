package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerKeyRepository stores exam question sets with their answers.
type AnswerKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerKeyRepository creates a new AnswerKeyRepository.
func NewAnswerKeyRepository(pool *pgxpool.Pool) *AnswerKeyRepository {
	return &AnswerKeyRepository{pool: pool}
}

// Upsert replaces the answer key of an exam.
func (r *AnswerKeyRepository) Upsert(ctx context.Context, key *model.AnswerKey) error {
	questions, err := json.Marshal(key.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO answer_keys (exam_id, questions, uploaded_by)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id) DO UPDATE
		 SET questions = EXCLUDED.questions, uploaded_by = EXCLUDED.uploaded_by, updated_at = NOW()
		 RETURNING updated_at`,
		key.ExamID, questions, key.UploadedBy,
	).Scan(&key.UpdatedAt)
}

// Get retrieves the answer key of an exam.
func (r *AnswerKeyRepository) Get(ctx context.Context, examID string) (*model.AnswerKey, error) {
	key := &model.AnswerKey{ExamID: examID}
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT questions, uploaded_by, updated_at FROM answer_keys WHERE exam_id = $1`, examID,
	).Scan(&raw, &key.UploadedBy, &key.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &key.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return key, nil
}

// ListExamIDs returns every exam with an uploaded answer key.
func (r *AnswerKeyRepository) ListExamIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT exam_id FROM answer_keys ORDER BY exam_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
