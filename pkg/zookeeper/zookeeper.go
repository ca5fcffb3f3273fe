// Package zookeeper provides a stash.Store that keeps one znode per key.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/zoobzio/stash"
)

// Conn is the subset of *zk.Conn used by Store.
type Conn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Delete(path string, version int32) error
}

// Store keeps each entry in the znode root/<escaped key>. Missing parent
// nodes are created on first write.
type Store struct {
	conn Conn
	root string
	acl  []zk.ACL
}

// Option configures a Store.
type Option func(*Store)

// WithACL sets the ACL for created znodes.
// Defaults to zk.WorldACL(zk.PermAll).
func WithACL(acl []zk.ACL) Option {
	return func(s *Store) {
		s.acl = acl
	}
}

// New creates a Store under root, for example "/stash".
func New(conn Conn, root string, opts ...Option) *Store {
	s := &Store{
		conn: conn,
		root: "/" + strings.Trim(root, "/"),
		acl:  zk.WorldACL(zk.PermAll),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the znode that holds key.
func (s *Store) Path(key string) string {
	if s.root == "/" {
		return "/" + url.PathEscape(key)
	}
	return s.root + "/" + url.PathEscape(key)
}

// Get returns the data of the znode for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, _, err := s.conn.Get(s.Path(key))
	if errors.Is(err, zk.ErrNoNode) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get node: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, true, nil
}

// Set writes data to the znode for key, creating it if needed.
func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(key)

	_, err := s.conn.Set(path, data, -1)
	if err == nil {
		return nil
	}
	if !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to set node: %w", err)
	}

	if err := s.ensureRoot(); err != nil {
		return err
	}
	_, err = s.conn.Create(path, data, 0, s.acl)
	if errors.Is(err, zk.ErrNodeExists) {
		// Created concurrently; overwrite.
		_, err = s.conn.Set(path, data, -1)
	}
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	return nil
}

// Delete removes the znode for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.conn.Delete(s.Path(key), -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	return nil
}

// ensureRoot creates every missing node along the root path.
func (s *Store) ensureRoot() error {
	if s.root == "/" {
		return nil
	}
	path := ""
	for _, part := range strings.Split(strings.TrimPrefix(s.root, "/"), "/") {
		path += "/" + part
		_, err := s.conn.Create(path, nil, 0, s.acl)
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil
}

var _ stash.Store = (*Store)(nil)
