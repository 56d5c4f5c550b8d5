package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopkit/checkout/internal/order"
	"github.com/shopkit/checkout/internal/storage"
)

const (
	createOrderSQL = `INSERT INTO orders (id, items, total, status, metadata, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT id, items, total, status, metadata, submitted_at
		FROM orders WHERE id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by the orders table. Totals are
// NUMERIC columns read and written as shopspring decimals.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create persists a new order record. Items are serialized to JSON for
// the JSONB column. The primary key rejects duplicate ids, so a record
// can never be silently overwritten.
func (s *OrderStore) Create(ctx context.Context, rec *order.Record) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return errors.Wrapf(err, "encode order %q metadata", rec.ID)
	}

	_, err = s.pool.Exec(ctx, createOrderSQL,
		rec.ID, storage.EncodeLines(rec.Items), rec.Total, rec.Status, metadata, rec.SubmittedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", rec.ID)
	}
	return nil
}

// Get loads an order record, returning order.ErrNotFound for unknown ids.
func (s *OrderStore) Get(ctx context.Context, id string) (*order.Record, error) {
	var (
		rec      order.Record
		items    []byte
		metadata []byte
	)
	err := s.pool.QueryRow(ctx, getOrderSQL, id).
		Scan(&rec.ID, &items, &rec.Total, &rec.Status, &metadata, &rec.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	rec.Items, err = storage.DecodeLines(items)
	if err != nil {
		return nil, errors.Wrapf(err, "decode order %q items", id)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, errors.Wrapf(err, "decode order %q metadata", id)
		}
	}
	return &rec, nil
}
