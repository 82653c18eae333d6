package service

import (
	"context"

	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/repository"
)

// EvaluatorService handles evaluator account lookups.
type EvaluatorService struct {
	repo *repository.EvaluatorRepository
}

// NewEvaluatorService creates a new EvaluatorService.
func NewEvaluatorService(repo *repository.EvaluatorRepository) *EvaluatorService {
	return &EvaluatorService{repo: repo}
}

func (s *EvaluatorService) GetByID(ctx context.Context, id int) (*model.Evaluator, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *EvaluatorService) GetByEmail(ctx context.Context, email string) (*model.Evaluator, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *EvaluatorService) Create(ctx context.Context, e *model.Evaluator) error {
	return s.repo.Create(ctx, e)
}
