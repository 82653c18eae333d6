package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// appendLockKey serializes appends across server replicas.
const appendLockKey int64 = 0x6c6564676572 // "ledger"

// PostgresStore persists the chain in the ledger_objects table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// WriteObject appends an object under a transaction-scoped advisory lock so
// that concurrent writers always extend the current head.
func (s *PostgresStore) WriteObject(ctx context.Context, kind Kind, fields any) (*Object, error) {
	key, payload, err := encode(kind, fields)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return nil, fmt.Errorf("lock ledger: %w", err)
	}

	prev := GenesisDigest
	err = tx.QueryRow(ctx, `SELECT digest FROM ledger_objects ORDER BY seq DESC LIMIT 1`).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read ledger head: %w", err)
	}

	obj := &Object{
		ID:         uuid.NewString(),
		Kind:       kind,
		Key:        key,
		Fields:     payload,
		PrevDigest: prev,
		Digest:     Digest(prev, kind, key, payload),
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO ledger_objects (id, kind, lookup_key, fields, prev_digest, digest)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING seq, created_at`,
		obj.ID, string(obj.Kind), obj.Key, string(obj.Fields), obj.PrevDigest, obj.Digest,
	).Scan(&obj.Seq, &obj.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert ledger object: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger object: %w", err)
	}
	return obj, nil
}

const selectObject = `SELECT id, seq, kind, lookup_key, fields, prev_digest, digest, created_at FROM ledger_objects`

func scanObject(row pgx.Row) (*Object, error) {
	var (
		o      Object
		kind   string
		fields string
	)
	if err := row.Scan(&o.ID, &o.Seq, &kind, &o.Key, &fields, &o.PrevDigest, &o.Digest, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Kind = Kind(kind)
	o.Fields = []byte(fields)
	return &o, nil
}

func (s *PostgresStore) ReadObject(ctx context.Context, id string) (*Object, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanObject(s.pool.QueryRow(ctx, selectObject+` WHERE id = $1`, id))
}

func (s *PostgresStore) ReadByKey(ctx context.Context, kind Kind, key string) (*Object, error) {
	return scanObject(s.pool.QueryRow(ctx,
		selectObject+` WHERE kind = $1 AND lookup_key = $2 ORDER BY seq DESC LIMIT 1`, string(kind), key))
}

// Verify streams the whole chain in sequence order.
func (s *PostgresStore) Verify(ctx context.Context) (*Report, error) {
	rows, err := s.pool.Query(ctx, selectObject+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	v := newChainVerifier()
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger object: %w", err)
		}
		if !v.next(o) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &v.report, nil
}
