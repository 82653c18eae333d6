package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRepository handles persisted evaluation results.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Upsert stores one result, replacing any earlier one for the same pseudonym.
func (r *ResultRepository) Upsert(ctx context.Context, res *evaluation.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO evaluation_results (exam_id, pseudonym_hash, total_score, max_score, result)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (exam_id, pseudonym_hash) DO UPDATE
		 SET total_score = EXCLUDED.total_score,
		     max_score = EXCLUDED.max_score,
		     result = EXCLUDED.result,
		     updated_at = NOW()`,
		res.ExamID, res.PseudonymHash, res.TotalScore, res.MaxScore, raw,
	)
	return err
}

// BulkUpsert stores a batch of results in one statement using UNNEST.
func (r *ResultRepository) BulkUpsert(ctx context.Context, batch []*evaluation.Result) error {
	n := len(batch)
	examIDs := make([]string, 0, n)
	pseudonyms := make([]string, 0, n)
	totals := make([]float64, 0, n)
	maxes := make([]float64, 0, n)
	docs := make([]string, 0, n)

	for _, res := range batch {
		raw, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		examIDs = append(examIDs, res.ExamID)
		pseudonyms = append(pseudonyms, res.PseudonymHash)
		totals = append(totals, res.TotalScore)
		maxes = append(maxes, res.MaxScore)
		docs = append(docs, string(raw))
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO evaluation_results (exam_id, pseudonym_hash, total_score, max_score, result)
		SELECT u.exam_id, u.pseudonym_hash, u.total_score, u.max_score, u.result::jsonb
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::float8[],
			$4::float8[],
			$5::text[]
		) AS u (exam_id, pseudonym_hash, total_score, max_score, result)
		ON CONFLICT (exam_id, pseudonym_hash) DO UPDATE
		SET total_score = EXCLUDED.total_score,
		    max_score = EXCLUDED.max_score,
		    result = EXCLUDED.result,
		    updated_at = NOW()`,
		examIDs, pseudonyms, totals, maxes, docs,
	)
	return err
}

// Get retrieves the stored result of one pseudonym.
func (r *ResultRepository) Get(ctx context.Context, examID, pseudonymHash string) (*evaluation.Result, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT result FROM evaluation_results WHERE exam_id = $1 AND pseudonym_hash = $2`,
		examID, pseudonymHash,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	res := &evaluation.Result{}
	if err := json.Unmarshal(raw, res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}

// FindByPseudonym retrieves the most recent result of a pseudonym in any exam.
func (r *ResultRepository) FindByPseudonym(ctx context.Context, pseudonymHash string) (*evaluation.Result, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT result FROM evaluation_results WHERE pseudonym_hash = $1 ORDER BY updated_at DESC LIMIT 1`,
		pseudonymHash,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	res := &evaluation.Result{}
	if err := json.Unmarshal(raw, res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}

// ListByExam returns every stored result of an exam.
func (r *ResultRepository) ListByExam(ctx context.Context, examID string) ([]evaluation.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT result FROM evaluation_results WHERE exam_id = $1 ORDER BY pseudonym_hash`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []evaluation.Result
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var res evaluation.Result
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
