// Package memkv is an in-process tokenstore.KV, used by tests and short-lived hosts.
package memkv

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-clinic-auth/tokenstore"
)

var _ tokenstore.KV = (*KV)(nil)

type KV struct {
	data map[string]string
	lock sync.RWMutex
}

func New() *KV {
	return &KV{data: make(map[string]string)}
}

func (m *KV) Get(_ context.Context, key string) (string, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *KV) SetMany(_ context.Context, values map[string]string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

func (m *KV) Delete(_ context.Context, keys ...string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *KV) Keys(_ context.Context) ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *KV) Close() error {
	return nil
}
