// Package registry is the naming directory that maps human-readable exam
// names to exam metadata. Entries live in a single redis hash.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNameTaken   = errors.New("exam name already registered")
	ErrNotFound    = errors.New("registry entry not found")
	ErrInvalidName = errors.New("exam name has no usable characters")
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Entry is one registered exam.
type Entry struct {
	Name           string            `json:"name"`
	ExamName       string            `json:"exam_name"`
	ExamID         string            `json:"exam_id"`
	LedgerObjectID string            `json:"ledger_object_id,omitempty"`
	ExamFee        string            `json:"exam_fee,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RegisteredAt   time.Time         `json:"registered_at"`
}

// LedgerKey indexes exam objects by registered name.
func (e *Entry) LedgerKey() string { return e.Name }

// Slug lower-cases examName, collapses every run of non-alphanumerics into a
// single dash and appends the parent suffix.
func Slug(examName, suffix string) (string, error) {
	label := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(examName), "-"), "-")
	if label == "" {
		return "", ErrInvalidName
	}
	return label + "." + strings.TrimPrefix(suffix, "."), nil
}

// Registry reads and writes entries under one hash key.
type Registry struct {
	rdb    redis.Cmdable
	key    string
	suffix string
	now    func() time.Time
}

// New returns a Registry storing entries in hash key under parent suffix.
func New(rdb redis.Cmdable, key, suffix string) *Registry {
	return &Registry{rdb: rdb, key: key, suffix: suffix, now: time.Now}
}

// Suffix returns the parent name entries are registered under.
func (r *Registry) Suffix() string { return r.suffix }

// Register claims the slug of examName. Names are first-come; an existing
// entry is never replaced.
func (r *Registry) Register(ctx context.Context, examName, examID string, fee string, metadata map[string]string) (*Entry, error) {
	name, err := Slug(examName, r.suffix)
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		Name:         name,
		ExamName:     strings.TrimSpace(examName),
		ExamID:       examID,
		ExamFee:      fee,
		Metadata:     metadata,
		RegisteredAt: r.now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}

	ok, err := r.rdb.HSetNX(ctx, r.key, name, raw).Result()
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNameTaken
	}
	return entry, nil
}

// SetMetadata merges metadata into an entry and records the ledger object
// that anchors it.
func (r *Registry) SetMetadata(ctx context.Context, name, ledgerObjectID string, metadata map[string]string) (*Entry, error) {
	entry, err := r.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		entry.Metadata[k] = v
	}
	if ledgerObjectID != "" {
		entry.LedgerObjectID = ledgerObjectID
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	if err := r.rdb.HSet(ctx, r.key, name, raw).Err(); err != nil {
		return nil, fmt.Errorf("update %s: %w", name, err)
	}
	return entry, nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(ctx context.Context, name string) (*Entry, error) {
	raw, err := r.rdb.HGet(ctx, r.key, strings.ToLower(name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &entry, nil
}

// List returns every entry ordered by name.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	all, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}
	entries := make([]Entry, 0, len(all))
	for name, raw := range all {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Search returns entries whose name or exam name contains query, case-insensitively.
func (r *Registry) Search(ctx context.Context, query string) ([]Entry, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(entries, query), nil
}

// Filter keeps entries matching query. An empty query keeps everything.
func Filter(entries []Entry, query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e.Name, q) || strings.Contains(strings.ToLower(e.ExamName), q) {
			out = append(out, e)
		}
	}
	return out
}
