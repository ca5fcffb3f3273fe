// Package nats provides a stash.Store backed by a NATS JetStream key-value
// bucket.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zoobzio/stash"
)

// Store keeps each entry under prefix+key in a JetStream KV bucket.
// Keys must be valid bucket keys: letters, digits and "-/_=.".
type Store struct {
	kv     jetstream.KeyValue
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key, for example "prefs.".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store using the bucket kv.
func New(kv jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{kv: kv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the latest value for key. Deleted and purged keys are absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, s.prefix+key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get value: %w", err)
	}
	data := entry.Value()
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Set puts a new revision for key.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	if _, err := s.kv.Put(ctx, s.prefix+key, data); err != nil {
		return fmt.Errorf("failed to put value: %w", err)
	}
	return nil
}

// Delete places a delete marker for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, s.prefix+key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

var _ stash.Store = (*Store)(nil)
