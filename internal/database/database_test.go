package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPingWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	ping := func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	}

	start := time.Now()
	err := pingWithRetry(ctx, zerolog.Nop(), ping)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("ping called %d times, want 1", calls)
	}
	if time.Since(start) > connectBackoff {
		t.Fatalf("retry waited on a cancelled context")
	}
}

func TestPingWithRetrySucceedsFirstTry(t *testing.T) {
	if err := pingWithRetry(context.Background(), zerolog.Nop(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("pingWithRetry: %v", err)
	}
}
