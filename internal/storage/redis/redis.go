// Package redis provides a Redis-backed KV for cart partitions and order
// records.
package redis

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/shopkit/checkout/internal/storage"
)

var _ storage.KV = (*KV)(nil)

// KV stores each key as a plain Redis string value with no expiry; carts
// are durable per identity, not session caches.
type KV struct {
	client *redis.Client
}

// New connects to Redis using the given URL and verifies connectivity.
func New(ctx context.Context, url string) (*KV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &KV{client: client}, nil
}

// Get returns the value for key; a redis.Nil reply maps to absent.
func (s *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get %q", key)
	}
	return data, true, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// Ping exposes connectivity for readiness checks.
func (s *KV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *KV) Close() error {
	return s.client.Close()
}
