package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DraftWorker consumes persist_drafts_queue and UPSERTs autosaved answers to PostgreSQL.
type DraftWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewDraftWorker creates a new DraftWorker.
func NewDraftWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *DraftWorker {
	return &DraftWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "draft_worker").Logger(),
	}
}

// Enqueue pushes one autosaved answer for persistence.
func (w *DraftWorker) Enqueue(ctx context.Context, d *model.Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return w.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, raw).Err()
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *DraftWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *DraftWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistDraftsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var draft model.Draft
	if err := json.Unmarshal([]byte(result[1]), &draft); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistDraft(ctx, &draft); err != nil {
		w.log.Error().Err(err).
			Str("exam_id", draft.ExamID).
			Str("pseudonym_hash", draft.PseudonymHash).
			Msg("Persist error, retrying in 5s")
		metrics.WorkerFlushed.WithLabelValues(config.WorkerKey.PersistDraftsQueue, "requeued").Inc()
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, result[1])
		time.Sleep(5 * time.Second)
		return
	}
	metrics.WorkerFlushed.WithLabelValues(config.WorkerKey.PersistDraftsQueue, "single").Inc()
}

func (w *DraftWorker) persistDraft(ctx context.Context, d *model.Draft) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO drafts (exam_id, pseudonym_hash, question_id, answer)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, pseudonym_hash, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		d.ExamID, d.PseudonymHash, d.QID, d.Answer,
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *DraftWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistDraftsQueue).Result()
		if err != nil {
			break
		}

		var draft model.Draft
		if err := json.Unmarshal([]byte(result), &draft); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistDraft(ctx, &draft); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
