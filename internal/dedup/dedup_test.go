package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLocalDetector(t *testing.T) {
	ctx := context.Background()
	d, err := New(nil, 16, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	key := Key("exam-1", "pseud", "answers")
	fresh, err := d.CheckAndMark(ctx, key)
	if err != nil || !fresh {
		t.Fatalf("expected first check to be new, got %v %v", fresh, err)
	}
	fresh, err = d.CheckAndMark(ctx, key)
	if err != nil || fresh {
		t.Fatalf("expected repeat to be detected, got %v %v", fresh, err)
	}

	other, err := d.CheckAndMark(ctx, Key("exam-1", "pseud", "changed"))
	if err != nil || !other {
		t.Fatalf("expected changed answers to be new, got %v %v", other, err)
	}

	if err := d.Release(ctx, key); err != nil {
		t.Fatalf("Release: %v", err)
	}
	fresh, err = d.CheckAndMark(ctx, key)
	if err != nil || !fresh {
		t.Fatalf("expected released key to be new again, got %v %v", fresh, err)
	}
}

func TestNewRejectsBadSize(t *testing.T) {
	if _, err := New(nil, 0, time.Hour, zerolog.Nop()); err == nil {
		t.Fatal("expected error for zero cache size")
	}
}
