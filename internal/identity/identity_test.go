package identity

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestDeriveIsFreshOnEveryCall(t *testing.T) {
	d := NewDeriver()

	first, err := d.Derive(testWallet, "exam-1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	second, err := d.Derive(testWallet, "exam-1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if first.Pseudonym == second.Pseudonym {
		t.Fatal("expected distinct pseudonyms for repeated calls")
	}
	if first.PseudonymHash == second.PseudonymHash {
		t.Fatal("expected distinct pseudonym hashes for repeated calls")
	}
	if first.Salt == second.Salt {
		t.Fatal("expected distinct salts for repeated calls")
	}
}

func TestDeriveUniqueAcrossWalletsAndExams(t *testing.T) {
	d := NewDeriver()
	seen := make(map[string]bool)

	pairs := [][2]string{
		{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "exam-1"},
		{"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "exam-1"},
		{testWallet, "exam-1"},
		{testWallet, "exam-2"},
	}
	for _, p := range pairs {
		rec, err := d.Derive(p[0], p[1])
		if err != nil {
			t.Fatalf("Derive(%s, %s): %v", p[0], p[1], err)
		}
		if seen[rec.PseudonymHash] {
			t.Fatalf("duplicate pseudonym hash for %v", p)
		}
		seen[rec.PseudonymHash] = true
	}
}

func TestPseudonymHashNeverContainsWallet(t *testing.T) {
	d := NewDeriver()
	wallet := strings.ToLower(testWallet)
	stripped := strings.TrimPrefix(wallet, "0x")

	for i := 0; i < 50; i++ {
		rec, err := d.Derive(testWallet, "exam-privacy")
		if err != nil {
			t.Fatalf("Derive: %v", err)
		}
		for _, v := range []string{rec.PseudonymHash, rec.Pseudonym} {
			folded := strings.ToLower(v)
			if strings.Contains(folded, wallet) || strings.Contains(folded, stripped) {
				t.Fatalf("derived value %s contains wallet address", v)
			}
		}
	}
}

func TestDeriveIsWalletIndependent(t *testing.T) {
	// Same entropy and clock must yield the same pseudonym whatever the wallet.
	entropy := bytes.Repeat([]byte{0x42}, EntropyBytes+SaltBytes)

	a, err := NewDeriver(WithRandom(bytes.NewReader(entropy)), WithClock(fixedClock)).Derive("0xaaaa0000aaaa0000aaaa", "exam-1")
	if err != nil {
		t.Fatalf("Derive a: %v", err)
	}
	b, err := NewDeriver(WithRandom(bytes.NewReader(entropy)), WithClock(fixedClock)).Derive("0xbbbb1111bbbb1111bbbb", "exam-1")
	if err != nil {
		t.Fatalf("Derive b: %v", err)
	}

	if a.Pseudonym != b.Pseudonym || a.PseudonymHash != b.PseudonymHash {
		t.Fatal("expected wallet to have no influence on derived values")
	}
	if a.WalletAddress == b.WalletAddress {
		t.Fatal("expected wallet to be carried in the record")
	}
}

func TestPseudonymHashIsSecondStage(t *testing.T) {
	rec, err := NewDeriver().Derive(testWallet, "exam-1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(rec.Pseudonym) != 64 || len(rec.PseudonymHash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d and %d", len(rec.Pseudonym), len(rec.PseudonymHash))
	}
	if HashPseudonym(rec.Pseudonym) != rec.PseudonymHash {
		t.Fatal("pseudonym hash is not the digest of the pseudonym")
	}
	if !rec.Verify() {
		t.Fatal("expected record to verify")
	}
	rec.Pseudonym = strings.Repeat("0", 64)
	if rec.Verify() {
		t.Fatal("expected tampered record to fail verification")
	}
}

func TestDeriveFailsWithoutEntropy(t *testing.T) {
	short := bytes.NewReader(make([]byte, EntropyBytes)) // salt read will fail
	_, err := NewDeriver(WithRandom(short)).Derive(testWallet, "exam-1")
	if !errors.Is(err, ErrRandomnessUnavailable) {
		t.Fatalf("expected ErrRandomnessUnavailable, got %v", err)
	}

	_, err = NewDeriver(WithRandom(bytes.NewReader(nil))).Derive(testWallet, "exam-1")
	if !errors.Is(err, ErrRandomnessUnavailable) {
		t.Fatalf("expected ErrRandomnessUnavailable, got %v", err)
	}
}

func TestDeriveRejectsMissingInputs(t *testing.T) {
	d := NewDeriver()
	if _, err := d.Derive(testWallet, " "); !errors.Is(err, ErrMissingExamID) {
		t.Fatalf("expected ErrMissingExamID, got %v", err)
	}
	if _, err := d.Derive("", "exam-1"); !errors.Is(err, ErrMissingWallet) {
		t.Fatalf("expected ErrMissingWallet, got %v", err)
	}
}

func TestDeriveRecordsClock(t *testing.T) {
	rec, err := NewDeriver(WithClock(fixedClock)).Derive(testWallet, "exam-1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if rec.CreatedAt != fixedClock().UnixMilli() {
		t.Fatalf("expected created_at %d, got %d", fixedClock().UnixMilli(), rec.CreatedAt)
	}
	if rec.ExamID != "exam-1" || rec.WalletAddress != testWallet {
		t.Fatalf("unexpected record fields: %+v", rec)
	}
}
