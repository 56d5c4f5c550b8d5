package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shopkit/checkout/internal/cart"
	"github.com/shopkit/checkout/internal/storage"
)

// recordKeyPrefix namespaces order records inside the shared KV backend.
const recordKeyPrefix = "order_"

var _ Store = (*KVStore)(nil)

// KVStore persists order records as JSON under order_<id> keys. Unlike
// the cart adapters it is NOT fail-soft: order placement must know whether
// the record is durable before the cart is cleared.
type KVStore struct {
	kv storage.KV
}

// NewKVStore returns a Store backed by the given KV.
func NewKVStore(kv storage.KV) *KVStore {
	return &KVStore{kv: kv}
}

type recordJSON struct {
	ID          string            `json:"id"`
	Items       json.RawMessage   `json:"items"`
	Total       decimal.Decimal   `json:"total"`
	Status      string            `json:"status"`
	SubmittedAt time.Time         `json:"date"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Create writes the record. Fails when a record with the same id exists;
// records are immutable once placed.
func (s *KVStore) Create(ctx context.Context, rec *Record) error {
	key := recordKeyPrefix + rec.ID
	if _, ok, err := s.kv.Get(ctx, key); err != nil {
		return errors.Wrapf(err, "check order %q", rec.ID)
	} else if ok {
		return errors.Errorf("order %q already exists", rec.ID)
	}

	data, err := json.Marshal(recordJSON{
		ID:          rec.ID,
		Items:       storage.EncodeLines(rec.Items),
		Total:       rec.Total,
		Status:      rec.Status,
		SubmittedAt: rec.SubmittedAt,
		Metadata:    rec.Metadata,
	})
	if err != nil {
		return errors.Wrapf(err, "encode order %q", rec.ID)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return errors.Wrapf(err, "store order %q", rec.ID)
	}
	return nil
}

// Get reads the record back, returning ErrNotFound for unknown ids.
func (s *KVStore) Get(ctx context.Context, id string) (*Record, error) {
	data, ok, err := s.kv.Get(ctx, recordKeyPrefix+id)
	if err != nil {
		return nil, errors.Wrapf(err, "load order %q", id)
	}
	if !ok {
		return nil, ErrNotFound
	}

	var rj recordJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, errors.Wrapf(err, "decode order %q", id)
	}
	items, err := storage.DecodeLines(rj.Items)
	if err != nil {
		return nil, errors.Wrapf(err, "decode order %q items", id)
	}
	if items == nil {
		items = []cart.Line{}
	}

	return &Record{
		ID:          rj.ID,
		Items:       items,
		Total:       rj.Total,
		Status:      rj.Status,
		SubmittedAt: rj.SubmittedAt,
		Metadata:    rj.Metadata,
	}, nil
}
