// Package storage adapts durable key-value backends to the cart engine.
//
// The adapters in this package are deliberately fail-soft: a read failure
// or corrupt payload yields an absent result and write/delete failures are
// swallowed (logged, never propagated). A broken backend is observable
// only as stale or missing data on a later read.
package storage

import "context"

// KV is the minimal durable key-value contract the adapters build on.
// Implementations live in the memory, redis, and postgres subpackages.
type KV interface {
	// Get returns the stored value for key. ok is false when the key is
	// absent; err reports backend failures.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
