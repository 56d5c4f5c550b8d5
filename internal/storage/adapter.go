package storage

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/shopkit/checkout/internal/cart"
	"github.com/shopkit/checkout/internal/identity"
)

// journalKey is the single storage key under which the checkout order
// journal keeps its per-principal object.
const journalKey = "carts"

var _ cart.Persistence = (*CartAdapter)(nil)

// CartAdapter implements the cart.Persistence port on top of a KV backend.
// Each identity maps to its own partition key, so two identities never
// read or overwrite each other's cart.
type CartAdapter struct {
	kv KV
	lg *zap.Logger
}

// NewCartAdapter wraps kv with the cart partition scheme. lg may be nil.
func NewCartAdapter(kv KV, lg *zap.Logger) *CartAdapter {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &CartAdapter{kv: kv, lg: lg}
}

// Read loads the identity's persisted lines. Absent partitions, backend
// failures, and corrupt payloads all yield nil.
func (a *CartAdapter) Read(ctx context.Context, id identity.Identity) []cart.Line {
	key := id.CartKey()
	data, ok, err := a.kv.Get(ctx, key)
	if err != nil {
		a.lg.Warn("cart read failed, treating as absent", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	items, err := DecodeLines(data)
	if err != nil {
		a.lg.Warn("cart partition corrupt, treating as absent", zap.String("key", key), zap.Error(err))
		return nil
	}
	return items
}

// Write persists the post-mutation line list under the identity's
// partition. Failures are swallowed.
func (a *CartAdapter) Write(ctx context.Context, id identity.Identity, items []cart.Line) {
	key := id.CartKey()
	if err := a.kv.Set(ctx, key, EncodeLines(items)); err != nil {
		a.lg.Warn("cart write failed, durability degraded", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes the identity's partition. Failures are swallowed.
func (a *CartAdapter) Delete(ctx context.Context, id identity.Identity) {
	key := id.CartKey()
	if err := a.kv.Delete(ctx, key); err != nil {
		a.lg.Warn("cart delete failed", zap.String("key", key), zap.Error(err))
	}
}

// JournalAdapter is the best-effort side channel written from checkout
// upsell actions. It keeps one JSON object under a fixed key, mapping each
// authenticated principal id to its latest working order items. It is a
// second, uncoordinated writer next to the main cart partition: the two
// are never read together, and the journal can lag or lose writes without
// affecting cart state.
type JournalAdapter struct {
	kv KV
	lg *zap.Logger
}

// NewJournalAdapter wraps kv as the order journal. lg may be nil.
func NewJournalAdapter(kv KV, lg *zap.Logger) *JournalAdapter {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &JournalAdapter{kv: kv, lg: lg}
}

// Write records the principal's working order items. Best-effort: a
// corrupt journal is replaced and backend failures are swallowed.
func (j *JournalAdapter) Write(ctx context.Context, principal string, items []cart.Line) {
	if principal == "" {
		return
	}

	entries := map[string]json.RawMessage{}
	if data, ok, err := j.kv.Get(ctx, journalKey); err == nil && ok {
		if err := json.Unmarshal(data, &entries); err != nil {
			j.lg.Warn("order journal corrupt, rewriting", zap.Error(err))
			entries = map[string]json.RawMessage{}
		}
	}
	entries[principal] = EncodeLines(items)

	data, err := json.Marshal(entries)
	if err != nil {
		j.lg.Warn("order journal encode failed", zap.Error(err))
		return
	}
	if err := j.kv.Set(ctx, journalKey, data); err != nil {
		j.lg.Warn("order journal write failed", zap.String("principal", principal), zap.Error(err))
	}
}

// Read returns the journal entry for the principal, or nil when absent.
func (j *JournalAdapter) Read(ctx context.Context, principal string) []cart.Line {
	data, ok, err := j.kv.Get(ctx, journalKey)
	if err != nil || !ok {
		return nil
	}
	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	raw, ok := entries[principal]
	if !ok {
		return nil
	}
	items, err := DecodeLines(raw)
	if err != nil {
		return nil
	}
	return items
}
