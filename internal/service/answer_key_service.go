package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrAnswerKeyMissing is returned when an exam has no uploaded answer key.
var ErrAnswerKeyMissing = errors.New("answer key not uploaded")

// InvalidQuestionsError lists every question of an upload that failed validation.
type InvalidQuestionsError struct {
	Errors []*evaluation.ValidationError
}

func (e *InvalidQuestionsError) Error() string {
	return fmt.Sprintf("%d invalid question(s), first: %v", len(e.Errors), e.Errors[0])
}

// Fields maps "questions[i]" to the validation message, for the response envelope.
func (e *InvalidQuestionsError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, ve := range e.Errors {
		fields[fmt.Sprintf("questions[%d]", ve.Index)] = ve.Error()
	}
	return fields
}

type answerKeyStore interface {
	Upsert(ctx context.Context, key *model.AnswerKey) error
	Get(ctx context.Context, examID string) (*model.AnswerKey, error)
	ListExamIDs(ctx context.Context) ([]string, error)
}

// AnswerKeyService stores answer keys in PostgreSQL and serves them from Redis
// for grading at submission time.
type AnswerKeyService struct {
	repo answerKeyStore
	rdb  redis.Cmdable
	log  zerolog.Logger
}

// NewAnswerKeyService creates a new AnswerKeyService.
func NewAnswerKeyService(repo answerKeyStore, rdb redis.Cmdable, log zerolog.Logger) *AnswerKeyService {
	return &AnswerKeyService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_key_service").Logger(),
	}
}

// Put validates every question, stores the set and warms the cache.
// Unlike grading, an upload is all-or-nothing.
func (s *AnswerKeyService) Put(ctx context.Context, examID string, evaluatorID int, questions []evaluation.Question) (*model.AnswerKey, error) {
	var invalid []*evaluation.ValidationError
	for i := range questions {
		if verr := questions[i].Validate(i); verr != nil {
			invalid = append(invalid, verr)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidQuestionsError{Errors: invalid}
	}

	key := &model.AnswerKey{ExamID: examID, Questions: questions, UploadedBy: evaluatorID}
	if err := s.repo.Upsert(ctx, key); err != nil {
		return nil, fmt.Errorf("store answer key: %w", err)
	}
	if err := s.warm(ctx, key); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("exam_id", examID).
		Int("questions", len(questions)).
		Int("evaluator_id", evaluatorID).
		Msg("Answer key uploaded")
	return key, nil
}

func (s *AnswerKeyService) warm(ctx context.Context, key *model.AnswerKey) error {
	raw, err := json.Marshal(key.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamAnswerKey(key.ExamID), raw, 0).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}
	return nil
}

// Questions returns an exam's question set, loading PostgreSQL on a cache miss.
func (s *AnswerKeyService) Questions(ctx context.Context, examID string) ([]evaluation.Question, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamAnswerKey(examID)).Bytes()
	if err == nil {
		var questions []evaluation.Question
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("unmarshal cached questions: %w", err)
		}
		return questions, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Answer key cache read failed, using database")
	}

	key, err := s.repo.Get(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnswerKeyMissing
		}
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	if err := s.warm(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Answer key cache refill failed")
	}
	return key.Questions, nil
}

// PrewarmAllCaches loads every answer key into Redis before traffic arrives.
func (s *AnswerKeyService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.repo.ListExamIDs(ctx)
	if err != nil {
		return fmt.Errorf("list answer keys: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info().Msg("No answer keys to prewarm")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		key, err := s.repo.Get(ctx, id)
		if err == nil {
			err = s.warm(ctx, key)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id).Msg("Failed to warm answer key, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(ids)).Msg("Prewarming complete")
	return nil
}
