package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const (
	creator = "0x52908400098527886e0f7030069857d2e4169ee7"
	student = "0x8617e340b3d01fa5f11f306f4090fd50e238070d"
)

func newTestNetwork(store Store) *Network {
	return NewNetwork(store, 3, time.Millisecond, zerolog.Nop())
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	n := newTestNetwork(NewMemoryStore())

	id, err := n.OpenSession(ctx, OpenParams{
		Kind:        KindRegistrationFee,
		PayerWallet: student,
		PayeeWallet: creator,
		ExamID:      "exam-1",
		Amount:      "0.05",
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if err := n.RecordEvent(ctx, id, "exam_started", json.RawMessage(`{"at":1}`)); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	sess, err := n.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.State != StateOpen || len(sess.Events) != 1 {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.PayerWallet != "0x8617E340B3D01FA5F11F306F4090FD50E238070D" {
		t.Fatalf("expected checksummed payer, got %s", sess.PayerWallet)
	}

	want, err := SettlementHash(sess)
	if err != nil {
		t.Fatalf("SettlementHash: %v", err)
	}
	res, err := n.SettleSession(ctx, id)
	if err != nil {
		t.Fatalf("SettleSession: %v", err)
	}
	if !res.Success || res.TxHash != want || !strings.HasPrefix(res.TxHash, "0x") || len(res.TxHash) != 66 {
		t.Fatalf("unexpected settlement %+v (want %s)", res, want)
	}

	if _, err := n.SettleSession(ctx, id); !errors.Is(err, ErrSessionSettled) {
		t.Fatalf("expected ErrSessionSettled, got %v", err)
	}
	if err := n.RecordEvent(ctx, id, "late", nil); !errors.Is(err, ErrSessionSettled) {
		t.Fatalf("expected ErrSessionSettled on event, got %v", err)
	}
}

func TestOpenSessionValidation(t *testing.T) {
	n := newTestNetwork(NewMemoryStore())
	tests := []struct {
		name   string
		params OpenParams
		want   error
	}{
		{"bad payer", OpenParams{Kind: KindListingFee, PayerWallet: "0x123", Amount: "1"}, ErrInvalidAddress},
		{"sui address", OpenParams{Kind: KindListingFee, PayerWallet: "0x" + strings.Repeat("a", 64), Amount: "1"}, ErrInvalidAddress},
		{"zero amount", OpenParams{Kind: KindListingFee, PayerWallet: creator, Amount: "0"}, ErrInvalidAmount},
		{"text amount", OpenParams{Kind: KindListingFee, PayerWallet: creator, Amount: "lots"}, ErrInvalidAmount},
		{"unknown kind", OpenParams{Kind: "tip", PayerWallet: creator, Amount: "1"}, ErrInvalidParams},
		{"registration without exam", OpenParams{Kind: KindRegistrationFee, PayerWallet: student, PayeeWallet: creator, Amount: "1"}, ErrInvalidParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := n.OpenSession(context.Background(), tc.params); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUnknownSession(t *testing.T) {
	n := newTestNetwork(NewMemoryStore())
	if _, err := n.SettleSession(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

// flakyStore fails the first failures calls to Update.
type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (f *flakyStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.MemoryStore.Update(ctx, id, fn)
}

func TestRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	n := newTestNetwork(store)

	id, err := n.OpenSession(ctx, OpenParams{Kind: KindListingFee, PayerWallet: creator, Amount: "2.5"})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := n.RecordEvent(ctx, id, "listed", nil); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}

	store.failures, store.calls = 10, 0
	if err := n.RecordEvent(ctx, id, "listed", nil); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if store.calls != 4 {
		t.Fatalf("expected 1 try + 3 retries, got %d", store.calls)
	}
}
