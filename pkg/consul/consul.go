// Package consul provides a stash.Store backed by the Consul KV store.
package consul

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"
	"github.com/zoobzio/stash"
)

// Store keeps each entry in the Consul KV pair prefix+key.
type Store struct {
	kv     *api.KV
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key, for example "app/prefs/".
// Consul keys must not start with "/".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store using client.
func New(client *api.Client, opts ...Option) *Store {
	s := &Store{kv: client.KV()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value of the KV pair for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	q := (&api.QueryOptions{}).WithContext(ctx)
	pair, _, err := s.kv.Get(s.prefix+key, q)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get value: %w", err)
	}
	if pair == nil {
		return nil, false, nil
	}
	data := pair.Value
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Set puts data in the KV pair for key.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	w := (&api.WriteOptions{}).WithContext(ctx)
	if _, err := s.kv.Put(&api.KVPair{Key: s.prefix + key, Value: data}, w); err != nil {
		return fmt.Errorf("failed to put value: %w", err)
	}
	return nil
}

// Delete removes the KV pair for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	w := (&api.WriteOptions{}).WithContext(ctx)
	if _, err := s.kv.Delete(s.prefix+key, w); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

var _ stash.Store = (*Store)(nil)
