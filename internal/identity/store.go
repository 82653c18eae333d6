package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// KeyPrefix namespaces identity entries in device storage.
const KeyPrefix = "identity_"

var (
	ErrNotFound       = errors.New("identity not found")
	ErrIdentityExists = errors.New("identity already stored for this exam")
)

// StorageKey returns the device storage key for an exam's identity.
func StorageKey(examID string) string {
	return KeyPrefix + examID
}

// Store persists identity records on the originating device.
type Store interface {
	Persist(ctx context.Context, rec *Record) error
	PersistUntil(ctx context.Context, rec *Record, expiresAt time.Time) error
	Load(ctx context.Context, examID string) (*Record, error)
	Forget(ctx context.Context, examID string) error
}

// LocalStore is a key/value table in a single-file SQLite database.
type LocalStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenLocalStore opens (or creates) the device store at path.
// Use ":memory:" for an ephemeral store.
func OpenLocalStore(path string) (*LocalStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping local store: %w", err)
	}

	s := &LocalStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return s, nil
}

func (s *LocalStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS local_storage (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		expires_at INTEGER
	)`)
	return err
}

// Close releases the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Persist stores rec with no expiry.
func (s *LocalStore) Persist(ctx context.Context, rec *Record) error {
	return s.persist(ctx, rec, sql.NullInt64{})
}

// PersistUntil stores rec until expiresAt, after which Load treats it as absent.
func (s *LocalStore) PersistUntil(ctx context.Context, rec *Record, expiresAt time.Time) error {
	return s.persist(ctx, rec, sql.NullInt64{Int64: expiresAt.UnixMilli(), Valid: true})
}

func (s *LocalStore) persist(ctx context.Context, rec *Record, expiresAt sql.NullInt64) error {
	if rec == nil || rec.ExamID == "" {
		return ErrMissingExamID
	}

	// Records are immutable; an expired entry may be replaced.
	if _, err := s.Load(ctx, rec.ExamID); err == nil {
		return ErrIdentityExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO local_storage (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		StorageKey(rec.ExamID), string(value), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("store identity: %w", err)
	}
	return nil
}

// Load returns the identity stored for examID or ErrNotFound.
func (s *LocalStore) Load(ctx context.Context, examID string) (*Record, error) {
	var (
		value     string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM local_storage WHERE key = ?`, StorageKey(examID),
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	if expiresAt.Valid && s.now().UnixMilli() >= expiresAt.Int64 {
		if err := s.Forget(ctx, examID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &rec, nil
}

// Forget deletes the identity for examID. Deleting a missing entry is not an error.
func (s *LocalStore) Forget(ctx context.Context, examID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, StorageKey(examID)); err != nil {
		return fmt.Errorf("forget identity: %w", err)
	}
	return nil
}
