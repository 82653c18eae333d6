package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairtest/fairtest-backend/internal/dedup"
	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/ledger"
	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/submission"
	"github.com/rs/zerolog"
)

// Submission errors.
var (
	ErrDuplicateSubmission = errors.New("identical answer set already submitted")
	ErrLedgerUnavailable   = errors.New("ledger write failed")
)

type questionSource interface {
	Questions(ctx context.Context, examID string) ([]evaluation.Question, error)
}

type submissionStore interface {
	Create(ctx context.Context, s *model.Submission) error
}

// ResultQueue hands evaluation results to the persistence worker.
type ResultQueue interface {
	Enqueue(ctx context.Context, res *evaluation.Result) error
}

// SubmissionService accepts pseudonymous submissions, anchors them on the
// ledger and grades them against the cached answer key.
type SubmissionService struct {
	questions questionSource
	store     submissionStore
	ledger    ledger.Store
	dedup     *dedup.Detector
	evaluator *evaluation.Evaluator
	queue     ResultQueue
	log       zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	questions questionSource,
	store submissionStore,
	ledgerStore ledger.Store,
	detector *dedup.Detector,
	evaluator *evaluation.Evaluator,
	queue ResultQueue,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		questions: questions,
		store:     store,
		ledger:    ledgerStore,
		dedup:     detector,
		evaluator: evaluator,
		queue:     queue,
		log:       log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit verifies the payload against its answers, rejects resubmission of an
// identical answer set, writes the payload to the ledger, stores the answers
// and returns the auto-graded result.
func (s *SubmissionService) Submit(ctx context.Context, payload submission.Payload, answers submission.Answers) (*model.SubmitResponse, error) {
	if err := payload.VerifyAnswers(answers); err != nil {
		metrics.Submissions.WithLabelValues("hash_mismatch").Inc()
		return nil, err
	}

	questions, err := s.questions.Questions(ctx, payload.ExamID)
	if err != nil {
		metrics.Submissions.WithLabelValues("no_answer_key").Inc()
		return nil, err
	}

	key := dedup.Key(payload.ExamID, payload.PseudonymHash, payload.AnswerHash)
	fresh, err := s.dedup.CheckAndMark(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("dedup check: %w", err)
	}
	if !fresh {
		metrics.Submissions.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateSubmission
	}
	// Any failure past the claim must free it, or the retry is refused as a duplicate.
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := s.dedup.Release(context.WithoutCancel(ctx), key); rerr != nil {
			s.log.Warn().Err(rerr).Msg("Dedup release failed")
		}
	}()

	obj, err := s.ledger.WriteObject(ctx, ledger.KindSubmission, payload)
	if err != nil {
		metrics.Submissions.WithLabelValues("ledger_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	metrics.LedgerWrites.WithLabelValues(string(ledger.KindSubmission)).Inc()

	sub := &model.Submission{
		ExamID:         payload.ExamID,
		PseudonymHash:  payload.PseudonymHash,
		AnswerHash:     payload.AnswerHash,
		Answers:        answers,
		LedgerObjectID: obj.ID,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("store submission: %w", err)
	}

	result, err := s.evaluator.Evaluate(questions, evaluation.Answers(answers))
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	result.PseudonymHash = payload.PseudonymHash
	result.ExamID = payload.ExamID
	metrics.Evaluations.WithLabelValues("auto").Inc()

	if err := s.queue.Enqueue(ctx, result); err != nil {
		s.log.Error().Err(err).
			Str("exam_id", payload.ExamID).
			Str("pseudonym_hash", payload.PseudonymHash).
			Msg("Result enqueue failed")
		return nil, fmt.Errorf("queue result: %w", err)
	}

	committed = true
	metrics.Submissions.WithLabelValues("accepted").Inc()
	s.log.Info().
		Str("exam_id", payload.ExamID).
		Str("pseudonym_hash", payload.PseudonymHash).
		Str("ledger_object_id", obj.ID).
		Float64("auto_score", result.AutoScore).
		Int("manual_pending", len(result.ManualGradingIDs)).
		Msg("Submission accepted and graded")

	return &model.SubmitResponse{LedgerObjectID: obj.ID, Result: result}, nil
}
