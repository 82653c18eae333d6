// Package dedup detects resubmission of an identical answer set. A local LRU
// answers repeat checks without a network round trip; redis SETNX makes the
// decision atomic across server replicas.
package dedup

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/metrics"
)

// Detector is a two-layer seen-set.
type Detector struct {
	redis     redis.Cmdable
	local     *lru.Cache[string, struct{}]
	ttl       time.Duration
	keyPrefix string
	log       zerolog.Logger
}

// New creates a Detector. A nil rdb keeps the detector process-local.
func New(rdb redis.Cmdable, localSize int, ttl time.Duration, log zerolog.Logger) (*Detector, error) {
	cache, err := lru.New[string, struct{}](localSize)
	if err != nil {
		return nil, fmt.Errorf("create LRU cache: %w", err)
	}
	return &Detector{
		redis:     rdb,
		local:     cache,
		ttl:       ttl,
		keyPrefix: "dedup:",
		log:       log.With().Str("component", "dedup").Logger(),
	}, nil
}

// Key identifies one answer set from one pseudonym in one exam.
func Key(examID, pseudonymHash, answerHash string) string {
	return examID + ":" + pseudonymHash + ":" + answerHash
}

// CheckAndMark records key and reports whether it was new.
func (d *Detector) CheckAndMark(ctx context.Context, key string) (bool, error) {
	if d.local.Contains(key) {
		metrics.DedupHits.WithLabelValues("local").Inc()
		d.log.Debug().Str("key", key).Msg("Dedup hit (local)")
		return false, nil
	}

	if d.redis == nil {
		d.local.Add(key, struct{}{})
		return true, nil
	}

	ok, err := d.redis.SetNX(ctx, d.keyPrefix+key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX: %w", err)
	}
	d.local.Add(key, struct{}{})
	if !ok {
		metrics.DedupHits.WithLabelValues("redis").Inc()
		d.log.Debug().Str("key", key).Msg("Dedup hit (redis)")
		return false, nil
	}
	return true, nil
}

// Release forgets key so a submission that failed downstream can be retried.
func (d *Detector) Release(ctx context.Context, key string) error {
	d.local.Remove(key)
	if d.redis == nil {
		return nil
	}
	if err := d.redis.Del(ctx, d.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis Del: %w", err)
	}
	return nil
}
