// Package etcd provides a stash.Store backed by etcd keys.
package etcd

import (
	"context"
	"fmt"

	"github.com/zoobzio/stash"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Store keeps each entry in the etcd key prefix+key.
type Store struct {
	kv     clientv3.KV
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key, for example "/app/prefs/".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store using kv. A *clientv3.Client satisfies clientv3.KV.
func New(kv clientv3.KV, opts ...Option) *Store {
	s := &Store{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value of the etcd key for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := s.kv.Get(ctx, s.prefix+key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get value: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	data := resp.Kvs[0].Value
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Set puts data at the etcd key for key.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	if _, err := s.kv.Put(ctx, s.prefix+key, string(data)); err != nil {
		return fmt.Errorf("failed to put value: %w", err)
	}
	return nil
}

// Delete removes the etcd key for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.kv.Delete(ctx, s.prefix+key); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

var _ stash.Store = (*Store)(nil)
