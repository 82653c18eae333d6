// Package ledger is the append-only object store that stands in for the
// public chain. Every object is linked to its predecessor by a SHA-256
// digest, so any rewrite of history is detectable by Verify.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fairtest/fairtest-backend/internal/canonical"
)

// Kind classifies ledger objects.
type Kind string

const (
	KindSubmission   Kind = "submission"
	KindEvaluation   Kind = "evaluation"
	KindRankedResult Kind = "ranked_result"
	KindExam         Kind = "exam"
)

// GenesisDigest is the predecessor digest of the first object.
const GenesisDigest = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	ErrNotFound    = errors.New("ledger object not found")
	ErrBrokenChain = errors.New("ledger chain is broken")
	ErrUnknownKind = errors.New("unknown ledger object kind")
)

// Keyed values are indexed under the key they return, typically a
// pseudonym hash.
type Keyed interface {
	LedgerKey() string
}

// Object is one immutable ledger entry.
type Object struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	Kind       Kind            `json:"kind"`
	Key        string          `json:"key,omitempty"`
	Fields     json.RawMessage `json:"fields"`
	PrevDigest string          `json:"prev_digest"`
	Digest     string          `json:"digest"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Decode unmarshals the object's fields into dst.
func (o *Object) Decode(dst any) error {
	return json.Unmarshal(o.Fields, dst)
}

// Report is the outcome of a chain verification.
type Report struct {
	Objects  int    `json:"objects"`
	Head     string `json:"head"`
	Valid    bool   `json:"valid"`
	BrokenAt int64  `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Store is the ledger boundary: write an object, read it back by id or by key.
type Store interface {
	WriteObject(ctx context.Context, kind Kind, fields any) (*Object, error)
	ReadObject(ctx context.Context, id string) (*Object, error)
	// ReadByKey returns the most recent object of kind stored under key.
	ReadByKey(ctx context.Context, kind Kind, key string) (*Object, error)
	Verify(ctx context.Context) (*Report, error)
}

func validKind(k Kind) bool {
	switch k {
	case KindSubmission, KindEvaluation, KindRankedResult, KindExam:
		return true
	}
	return false
}

// encode validates kind and returns the lookup key and canonical fields.
func encode(kind Kind, fields any) (string, []byte, error) {
	if !validKind(kind) {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	var key string
	if k, ok := fields.(Keyed); ok {
		key = k.LedgerKey()
	}
	payload, err := canonical.Marshal(fields)
	if err != nil {
		return "", nil, fmt.Errorf("encode ledger fields: %w", err)
	}
	return key, payload, nil
}

// Digest links an object to its predecessor. Each component is
// length-prefixed so boundaries cannot shift between fields.
func Digest(prev string, kind Kind, key string, fields []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(prev), []byte(kind), []byte(key), fields} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// chainVerifier checks objects one at a time in sequence order.
type chainVerifier struct {
	report Report
	prev   string
}

func newChainVerifier() *chainVerifier {
	return &chainVerifier{report: Report{Valid: true, Head: GenesisDigest}, prev: GenesisDigest}
}

// next returns false once a broken link has been recorded.
func (v *chainVerifier) next(o *Object) bool {
	v.report.Objects++
	fail := func(reason string) bool {
		v.report.Valid = false
		v.report.BrokenAt = o.Seq
		v.report.Reason = reason
		return false
	}
	if o.PrevDigest != v.prev {
		return fail("prev_digest does not match predecessor")
	}
	if Digest(o.PrevDigest, o.Kind, o.Key, o.Fields) != o.Digest {
		return fail("digest does not match contents")
	}
	v.prev = o.Digest
	v.report.Head = o.Digest
	return true
}

// VerifyChain checks a full, seq-ordered list of objects.
func VerifyChain(objects []Object) *Report {
	v := newChainVerifier()
	for i := range objects {
		if !v.next(&objects[i]) {
			break
		}
	}
	return &v.report
}
