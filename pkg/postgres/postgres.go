// Package postgres provides a stash.Store backed by a PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/stash"
)

// Store keeps entries as rows of a key/value table:
//
//	CREATE TABLE stash (
//	    key        TEXT PRIMARY KEY,
//	    value      BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//
// Call EnsureSchema to create it.
type Store struct {
	pool  *pgxpool.Pool
	table string
	clock clockz.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithTable sets the table name.
// Defaults to "stash".
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// WithClock sets the clock used to stamp updated_at.
// Defaults to clockz.RealClock.
func WithClock(clock clockz.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates a Store using pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:  pool,
		table: "stash",
		clock: clockz.RealClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureSchema creates the table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, s.ident()))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Get returns the value column of the row for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", s.ident())

	var data []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch value: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Set upserts the row for key.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.ident())
	if _, err := s.pool.Exec(ctx, query, key, data, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", s.ident())
	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

var _ stash.Store = (*Store)(nil)
