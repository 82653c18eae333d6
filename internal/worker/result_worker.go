package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

type resultWriter interface {
	BulkUpsert(ctx context.Context, batch []*evaluation.Result) error
	Upsert(ctx context.Context, res *evaluation.Result) error
}

// ResultWorker batches evaluation results from persist_results_queue into PostgreSQL.
type ResultWorker struct {
	repo resultWriter
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(repo resultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// Enqueue pushes a result for asynchronous persistence.
func (w *ResultWorker) Enqueue(ctx context.Context, res *evaluation.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err()
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*evaluation.Result, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res evaluation.Result
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert with per-item fallback
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*evaluation.Result) {
	if len(batch) == 0 {
		return
	}

	if err := w.repo.BulkUpsert(ctx, dedupeLatest(batch)); err != nil {
		w.log.Warn().Err(err).Msg("bulk result upsert failed, using fallback")

		for _, res := range batch {
			if err := w.repo.Upsert(ctx, res); err != nil {
				w.log.Error().Err(err).
					Str("exam_id", res.ExamID).
					Str("pseudonym_hash", res.PseudonymHash).
					Msg("Upsert failed, requeueing")
				metrics.WorkerFlushed.WithLabelValues(config.WorkerKey.PersistResultsQueue, "requeued").Inc()
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
				continue
			}
			metrics.WorkerFlushed.WithLabelValues(config.WorkerKey.PersistResultsQueue, "single").Inc()
		}
		return
	}

	metrics.WorkerFlushed.WithLabelValues(config.WorkerKey.PersistResultsQueue, "bulk").Add(float64(len(batch)))
	w.log.Debug().Int("count", len(batch)).Msg("Results flushed")
}

// dedupeLatest keeps the last result per (exam, pseudonym). A single
// INSERT ... ON CONFLICT cannot touch the same row twice.
func dedupeLatest(batch []*evaluation.Result) []*evaluation.Result {
	index := make(map[string]int, len(batch))
	out := make([]*evaluation.Result, 0, len(batch))
	for _, res := range batch {
		k := res.ExamID + "\x00" + res.PseudonymHash
		if i, ok := index[k]; ok {
			out[i] = res
			continue
		}
		index[k] = len(out)
		out = append(out, res)
	}
	return out
}
