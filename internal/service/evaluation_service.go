package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/ledger"
	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/ranking"
	"github.com/fairtest/fairtest-backend/internal/response"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Evaluation errors.
var (
	ErrResultNotFound = errors.New("result not found")
	ErrNoResults      = errors.New("exam has no results to rank")
)

type resultStore interface {
	Upsert(ctx context.Context, res *evaluation.Result) error
	Get(ctx context.Context, examID, pseudonymHash string) (*evaluation.Result, error)
	FindByPseudonym(ctx context.Context, pseudonymHash string) (*evaluation.Result, error)
	ListByExam(ctx context.Context, examID string) ([]evaluation.Result, error)
}

type submissionReader interface {
	GetLatest(ctx context.Context, examID, pseudonymHash string) (*model.Submission, error)
	ListByExamPaginated(ctx context.Context, examID string, limit, offset int) ([]model.Submission, int, error)
}

// EvaluationService covers everything an evaluator does after submissions
// arrive: review, manual grading, ranking and publication.
type EvaluationService struct {
	results     resultStore
	submissions submissionReader
	ledger      ledger.Store
	evaluator   *evaluation.Evaluator
	log         zerolog.Logger
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(
	results resultStore,
	submissions submissionReader,
	ledgerStore ledger.Store,
	evaluator *evaluation.Evaluator,
	log zerolog.Logger,
) *EvaluationService {
	return &EvaluationService{
		results:     results,
		submissions: submissions,
		ledger:      ledgerStore,
		evaluator:   evaluator,
		log:         log.With().Str("component", "evaluation_service").Logger(),
	}
}

// ListSubmissions lists an exam's submissions, newest last.
func (s *EvaluationService) ListSubmissions(ctx context.Context, examID string, page, perPage int) ([]model.Submission, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	subs, total, err := s.submissions.ListByExamPaginated(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, response.NewPagination(page, perPage, total), nil
}

// GetSubmission returns a submission's answers with its current evaluation.
func (s *EvaluationService) GetSubmission(ctx context.Context, examID, pseudonymHash string) (*model.SubmissionDetail, error) {
	sub, err := s.submissions.GetLatest(ctx, examID, pseudonymHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}

	detail := &model.SubmissionDetail{Submission: *sub}
	res, err := s.results.Get(ctx, examID, pseudonymHash)
	switch {
	case err == nil:
		detail.Result = res
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get result: %w", err)
	}
	return detail, nil
}

// ApplyManualGrades merges human grades into a stored result, persists it
// and anchors the merged evaluation on the ledger.
func (s *EvaluationService) ApplyManualGrades(ctx context.Context, examID, pseudonymHash string, grades map[string]float64) (*evaluation.Result, error) {
	current, err := s.results.Get(ctx, examID, pseudonymHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}

	merged, err := s.evaluator.MergeManualGrades(current, grades)
	if err != nil {
		return nil, err
	}
	if err := s.results.Upsert(ctx, merged); err != nil {
		return nil, fmt.Errorf("store merged result: %w", err)
	}
	metrics.Evaluations.WithLabelValues("manual_merge").Inc()

	if _, err := s.ledger.WriteObject(ctx, ledger.KindEvaluation, merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	metrics.LedgerWrites.WithLabelValues(string(ledger.KindEvaluation)).Inc()

	s.log.Info().
		Str("exam_id", examID).
		Str("pseudonym_hash", pseudonymHash).
		Int("manual_grades_applied", merged.ManualGradesApplied).
		Float64("total_score", merged.TotalScore).
		Msg("Manual grades merged")
	return merged, nil
}

// Publish ranks every stored result of an exam and writes each ranked result
// to the ledger under its pseudonym hash.
func (s *EvaluationService) Publish(ctx context.Context, examID string) (*model.PublishResponse, error) {
	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	ranked := ranking.Rank(results)
	ids := make([]string, 0, len(ranked))
	for i := range ranked {
		obj, err := s.ledger.WriteObject(ctx, ledger.KindRankedResult, &ranked[i])
		if err != nil {
			return nil, fmt.Errorf("%w: rank %d: %v", ErrLedgerUnavailable, ranked[i].Rank, err)
		}
		ids = append(ids, obj.ID)
	}
	metrics.LedgerWrites.WithLabelValues(string(ledger.KindRankedResult)).Add(float64(len(ranked)))

	s.log.Info().Str("exam_id", examID).Int("results", len(ranked)).Msg("Results published")
	return &model.PublishResponse{ExamID: examID, Leaderboard: ranked, LedgerIDs: ids}, nil
}

// GetPublishedResult reads a pseudonym's ranked result back from the ledger,
// falling back to its latest unpublished evaluation.
func (s *EvaluationService) GetPublishedResult(ctx context.Context, pseudonymHash string) (*model.PublishedResult, error) {
	obj, err := s.ledger.ReadByKey(ctx, ledger.KindRankedResult, pseudonymHash)
	if err == nil {
		var r ranking.Ranked
		if err := obj.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode ranked result: %w", err)
		}
		return &model.PublishedResult{Source: model.ResultSourceLedger, LedgerObjectID: obj.ID, Ranked: &r}, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	res, err := s.results.FindByPseudonym(ctx, pseudonymHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("find result: %w", err)
	}
	return &model.PublishedResult{Source: model.ResultSourcePending, Evaluation: res}, nil
}

// Evaluate grades an answer set without touching storage.
func (s *EvaluationService) Evaluate(req *model.EvaluateRequest) (*evaluation.Result, error) {
	res, err := s.evaluator.Evaluate(req.Questions, req.Answers)
	if err != nil {
		return nil, err
	}
	res.PseudonymHash = req.PseudonymHash
	res.ExamID = req.ExamID
	metrics.Evaluations.WithLabelValues("stateless").Inc()
	return res, nil
}

// Rank ranks results without touching storage.
func (s *EvaluationService) Rank(results []evaluation.Result) []ranking.Ranked {
	return ranking.Rank(results)
}

// LedgerObject reads one ledger object by id.
func (s *EvaluationService) LedgerObject(ctx context.Context, id string) (*ledger.Object, error) {
	return s.ledger.ReadObject(ctx, id)
}

// VerifyLedger walks the whole chain.
func (s *EvaluationService) VerifyLedger(ctx context.Context) (*ledger.Report, error) {
	return s.ledger.Verify(ctx)
}
