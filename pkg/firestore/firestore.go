// Package firestore provides a stash.Store that keeps one Firestore document
// per key.
package firestore

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/firestore"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/stash"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store keeps each entry in the document collection/<escaped key>. The
// encoded value lives in a bytes field, "data" by default, next to the
// original key and an updated_at timestamp.
type Store struct {
	client     *firestore.Client
	collection string
	field      string
	clock      clockz.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithField sets the document field that holds the encoded value.
// Defaults to "data".
func WithField(field string) Option {
	return func(s *Store) {
		s.field = field
	}
}

// WithClock sets the clock used to stamp updated_at.
// Defaults to clockz.RealClock.
func WithClock(clock clockz.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates a Store writing to collection.
func New(client *firestore.Client, collection string, opts ...Option) *Store {
	s := &Store{
		client:     client,
		collection: collection,
		field:      "data",
		clock:      clockz.RealClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(url.PathEscape(key))
}

// Get returns the value field of the document for key. A document without
// the field is treated as absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get document: %w", err)
	}

	switch v := snap.Data()[s.field].(type) {
	case []byte:
		if v == nil {
			v = []byte{}
		}
		return v, true, nil
	case string:
		return []byte(v), true, nil
	case nil:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("field %q has unsupported type %T", s.field, v)
	}
}

// Set replaces the document for key.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.doc(key).Set(ctx, map[string]interface{}{
		s.field:      data,
		"key":        key,
		"updated_at": s.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Delete removes the document for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

var _ stash.Store = (*Store)(nil)
