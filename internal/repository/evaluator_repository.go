package repository

import (
	"context"

	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EvaluatorRepository handles evaluator account data access.
type EvaluatorRepository struct {
	pool *pgxpool.Pool
}

// NewEvaluatorRepository creates a new EvaluatorRepository.
func NewEvaluatorRepository(pool *pgxpool.Pool) *EvaluatorRepository {
	return &EvaluatorRepository{pool: pool}
}

// GetByID retrieves an evaluator by ID.
func (r *EvaluatorRepository) GetByID(ctx context.Context, id int) (*model.Evaluator, error) {
	e := &model.Evaluator{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM evaluators WHERE id = $1`, id,
	).Scan(&e.ID, &e.Email, &e.Name, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByEmail retrieves an evaluator by email for login.
func (r *EvaluatorRepository) GetByEmail(ctx context.Context, email string) (*model.Evaluator, error) {
	e := &model.Evaluator{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM evaluators WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&e.ID, &e.Email, &e.Name, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new evaluator and fills its ID and timestamps.
func (r *EvaluatorRepository) Create(ctx context.Context, e *model.Evaluator) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO evaluators (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		e.Email, e.Name, e.PasswordHash,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}
