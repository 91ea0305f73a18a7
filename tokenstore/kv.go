package tokenstore

import "context"

// KV is the durable key/value medium behind a Store. SetMany and Delete must
// apply all of their keys or none of them.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
