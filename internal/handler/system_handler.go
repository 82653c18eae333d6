package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/metrics"
	"github.com/fairtest/fairtest-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// SystemHandler reports dependency health and worker queue depth.
type SystemHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		pool:      pool,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthStatus struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Postgres   string `json:"postgres"`
	Redis      string `json:"redis"`
	Goroutines int    `json:"goroutines"`

	// Worker Queues
	QueueResults int64 `json:"queue_results"`
	QueueDrafts  int64 `json:"queue_drafts"`
}

// Health godoc
// GET /health
// Pings postgres and redis and samples the persistence queues. Responds 503
// when either dependency is down.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	s := healthStatus{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Postgres:   "ok",
		Redis:      "ok",
		Goroutines: runtime.NumGoroutine(),
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres health check failed")
		s.Status, s.Postgres = "degraded", "down"
	}

	// ── Worker Queues (pipelined LLEN) ──
	pipe := h.rdb.Pipeline()
	resultsCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
	draftsCmd := pipe.LLen(ctx, config.WorkerKey.PersistDraftsQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		s.Status, s.Redis = "degraded", "down"
	} else {
		s.QueueResults, _ = resultsCmd.Result()
		s.QueueDrafts, _ = draftsCmd.Result()
		metrics.QueueDepth.WithLabelValues(config.WorkerKey.PersistResultsQueue).Set(float64(s.QueueResults))
		metrics.QueueDepth.WithLabelValues(config.WorkerKey.PersistDraftsQueue).Set(float64(s.QueueDrafts))
	}

	status := http.StatusOK
	if s.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, s)
}
