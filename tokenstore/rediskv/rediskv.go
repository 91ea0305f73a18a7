// Package rediskv keeps a client session in Redis, for hosts that share one
// session across several processes.
package rediskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-clinic-auth/tokenstore"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

var _ tokenstore.KV = (*KV)(nil)

type KV struct {
	client    *redis.Client
	namespace string
}

// New scopes every key under namespace so several sessions can share one database.
func New(client *redis.Client, namespace string) *KV {
	return &KV{client: client, namespace: namespace}
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *KV) SetMany(ctx context.Context, values map[string]string) error {
	pipe := s.client.TxPipeline()
	for k, v := range values {
		pipe.Set(ctx, s.key(k), v, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *KV) Keys(ctx context.Context) ([]string, error) {
	prefix := s.key("")
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, k[len(prefix):])
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Close is a no-op; the client is owned by the caller.
func (s *KV) Close() error {
	return nil
}

func (s *KV) key(k string) string {
	return s.namespace + ":" + k
}
