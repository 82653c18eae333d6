// Package identity derives the per-exam pseudonym that stands in for a
// test-taker's wallet, and keeps the record on the originating device so the
// submitter can later recover the link between wallet and result.
//
// Derivation never mixes wallet bytes into the hash inputs. The wallet is
// carried in the record only as a local lookup aid.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	// EntropyBytes is the size of the random value behind every pseudonym.
	EntropyBytes = 32
	// SaltBytes is the size of the per-derivation salt.
	SaltBytes = 16
)

var (
	// ErrRandomnessUnavailable is fatal: derivation never falls back to a
	// weaker source.
	ErrRandomnessUnavailable = errors.New("secure randomness unavailable")
	ErrMissingExamID         = errors.New("exam id is required")
	ErrMissingWallet         = errors.New("wallet address is required")
)

// Record is one exam-scoped identity. Only PseudonymHash ever leaves the device.
type Record struct {
	Pseudonym     string `json:"pseudonym"`
	PseudonymHash string `json:"pseudonym_hash"`
	ExamID        string `json:"exam_id"`
	WalletAddress string `json:"wallet_address"`
	Salt          string `json:"salt"`
	CreatedAt     int64  `json:"created_at"` // unix milliseconds
}

// Deriver creates identity records from an injected entropy source and clock.
type Deriver struct {
	random io.Reader
	now    func() time.Time
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithRandom replaces the entropy source. Tests use it to supply a
// deterministic reader; production keeps crypto/rand.
func WithRandom(r io.Reader) Option { return func(d *Deriver) { d.random = r } }

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option { return func(d *Deriver) { d.now = now } }

// NewDeriver returns a Deriver backed by crypto/rand unless overridden.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{
		random: rand.Reader,
		now:    time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Derive produces a fresh, unlinkable identity for (walletAddress, examID).
// Two calls with the same inputs never return the same pseudonym.
func (d *Deriver) Derive(walletAddress, examID string) (*Record, error) {
	if strings.TrimSpace(examID) == "" {
		return nil, ErrMissingExamID
	}
	if strings.TrimSpace(walletAddress) == "" {
		return nil, ErrMissingWallet
	}

	entropy := make([]byte, EntropyBytes)
	if _, err := io.ReadFull(d.random, entropy); err != nil {
		return nil, fmt.Errorf("%w: read entropy: %v", ErrRandomnessUnavailable, err)
	}
	saltRaw := make([]byte, SaltBytes)
	if _, err := io.ReadFull(d.random, saltRaw); err != nil {
		return nil, fmt.Errorf("%w: read salt: %v", ErrRandomnessUnavailable, err)
	}

	now := d.now()
	salt := hex.EncodeToString(saltRaw)

	h := sha256.New()
	h.Write(entropy)
	h.Write([]byte(strconv.FormatInt(now.UnixNano(), 10)))
	h.Write([]byte(salt))
	pseudonym := hex.EncodeToString(h.Sum(nil))

	return &Record{
		Pseudonym:     pseudonym,
		PseudonymHash: HashPseudonym(pseudonym),
		ExamID:        examID,
		WalletAddress: walletAddress,
		Salt:          salt,
		CreatedAt:     now.UnixMilli(),
	}, nil
}

// HashPseudonym is the second derivation stage: the public, ledger-facing
// digest of a pseudonym.
func HashPseudonym(pseudonym string) string {
	sum := sha256.Sum256([]byte(pseudonym))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the record's hash matches its pseudonym. It lets a
// submitter prove ownership of a published result by revealing the pseudonym.
func (r *Record) Verify() bool {
	return r != nil && r.Pseudonym != "" && HashPseudonym(r.Pseudonym) == r.PseudonymHash
}
