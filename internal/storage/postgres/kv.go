package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopkit/checkout/internal/storage"
)

const (
	getKVSQL = `SELECT value FROM cart_kv WHERE key = $1`

	setKVSQL = `INSERT INTO cart_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	deleteKVSQL = `DELETE FROM cart_kv WHERE key = $1`
)

var _ storage.KV = (*KV)(nil)

// KV implements the storage.KV port on the cart_kv table. Values are
// stored as JSONB; last writer wins, matching the unguarded cross-process
// semantics of the cart partitions.
type KV struct {
	pool *pgxpool.Pool
}

// NewKV returns a KV that uses the given pool.
func NewKV(pool *pgxpool.Pool) *KV {
	return &KV{pool: pool}
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, getKVSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %q", key)
	}
	return value, true, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, setKVSQL, key, value); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteKVSQL, key); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}
