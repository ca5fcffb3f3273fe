package stash

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// errStale reports that the entry changed while an update function ran.
var errStale = errors.New("stash: entry changed during update")

// Cell reconciles a cached value for one key against the Store and
// publishes local writes to every subscriber of that key.
//
// Every read compares the stored encoding with the cached snapshot and only
// decodes when they differ, so changes made outside the cell (another
// process, a manual edit) are picked up on the next read while unchanged
// values keep their identity. Writes are deduplicated by encoding: a value
// that encodes to the current entry neither touches the store nor notifies.
// An empty stored entry reads as absent.
//
// Cell is safe for concurrent use.
type Cell[T any] struct {
	key      string
	store    Store
	codec    Codec
	registry *Registry
	clock    clockz.Clock
	metrics  MetricsProvider

	mu      sync.Mutex
	value   T
	encoded []byte
	present bool
	loaded  bool
	seq     uint64
}

// NewCell creates a Cell for key backed by store.
//
// The cell does not subscribe to its own key; use Bind for a cell that
// follows writes made elsewhere in the process.
func NewCell[T any](key string, store Store, opts ...Option) (*Cell[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if store == nil {
		return nil, ErrNilStore
	}
	return newCell[T](key, store, newConfig(opts)), nil
}

func newCell[T any](key string, store Store, cfg *config) *Cell[T] {
	return &Cell[T]{
		key:      key,
		store:    store,
		codec:    cfg.codec,
		registry: cfg.registry,
		clock:    cfg.clock,
		metrics:  cfg.metrics,
	}
}

// Key returns the key the cell is bound to.
func (c *Cell[T]) Key() string {
	return c.key
}

// Read returns the current value for the key. ok is false when the store
// holds no entry.
//
// If the stored encoding matches the cached snapshot the cached value is
// returned as is. Otherwise the entry is decoded and adopted as the new
// snapshot. On a DecodeError the previous snapshot is kept.
func (c *Cell[T]) Read(ctx context.Context) (value T, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok, err = c.reconcile(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return value, ok, nil
}

// Write stores v and notifies every subscriber of the key.
// It reports whether anything changed; writing a value whose encoding equals
// the current entry returns false without touching the store.
func (c *Cell[T]) Write(ctx context.Context, v T) (bool, error) {
	return c.commit(ctx, func(T, bool) (T, bool, bool) {
		return v, true, true
	})
}

// Update stores the result of fn applied to the freshest value, read from
// the store just before fn runs.
//
// fn runs without any lock held, so it may read the cell or its binding.
// If the entry changes before the result is stored, fn runs again on the
// new value.
func (c *Cell[T]) Update(ctx context.Context, fn func(old T, ok bool) T) (bool, error) {
	for {
		c.mu.Lock()
		old, ok, err := c.reconcile(ctx)
		seen, seenPresent := c.encoded, c.present
		c.mu.Unlock()
		if err != nil {
			return false, err
		}

		next := fn(old, ok)

		changed, err := c.commit(ctx, func(T, bool) (T, bool, bool) {
			current := c.present == seenPresent && bytes.Equal(c.encoded, seen)
			return next, true, current
		})
		if errors.Is(err, errStale) {
			continue
		}
		return changed, err
	}
}

// Delete removes the entry and notifies subscribers that the key is empty.
// Deleting an absent entry is a no-op.
func (c *Cell[T]) Delete(ctx context.Context) (bool, error) {
	return c.commit(ctx, func(T, bool) (T, bool, bool) {
		var zero T
		return zero, false, true
	})
}

// snapshot returns the cached value without reading the store.
func (c *Cell[T]) snapshot() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.present
}

// reconcile loads the stored entry and refreshes the snapshot when it
// diverged. Callers must hold mu.
func (c *Cell[T]) reconcile(ctx context.Context) (T, bool, error) {
	data, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		err = &LoadError{Key: c.key, Err: err}
		c.fail(ctx, err)
		return c.value, c.present, err
	}
	if len(data) == 0 {
		data, ok = nil, false
	}

	if c.loaded && ok == c.present && bytes.Equal(data, c.encoded) {
		c.metrics.OnRead(c.key, false)
		return c.value, c.present, nil
	}

	var next T
	if ok {
		if err := c.codec.Unmarshal(data, &next); err != nil {
			derr := &DecodeError{Key: c.key, Data: data, Err: err}
			c.fail(ctx, derr)
			return c.value, c.present, derr
		}
	} else {
		data = nil
	}

	diverged := c.loaded
	c.value, c.encoded, c.present, c.loaded = next, data, ok, true

	if diverged {
		capitan.Emit(ctx, CellDiverged, KeyKey.Field(c.key))
	}
	c.metrics.OnRead(c.key, diverged)
	return next, ok, nil
}

// commit reconciles, resolves the new value, deduplicates, persists and
// publishes. Writers of the same key are serialized through the registry.
// Both locks are released before publishing so subscribers may write to the
// same key. resolve reports apply=false to abort with errStale.
func (c *Cell[T]) commit(ctx context.Context, resolve func(old T, ok bool) (next T, present, apply bool)) (bool, error) {
	start := c.clock.Now()

	seq, release := c.registry.acquire(c.key)
	c.mu.Lock()
	unlock := func() {
		c.mu.Unlock()
		release()
	}

	old, oldPresent, err := c.reconcile(ctx)
	if err != nil {
		unlock()
		return false, err
	}

	next, present, apply := resolve(old, oldPresent)
	if !apply {
		unlock()
		return false, errStale
	}

	var data []byte
	if present {
		data, err = c.codec.Marshal(next)
		if err != nil {
			unlock()
			eerr := &EncodeError{Key: c.key, Err: err}
			c.fail(ctx, eerr)
			return false, eerr
		}
		if len(data) == 0 {
			// an empty encoding reads back as absence
			var zero T
			next, present, data = zero, false, nil
		}
	}

	if present == c.present && (!present || c.sameEncoding(data)) {
		unlock()
		c.metrics.OnWriteSkipped(c.key)
		capitan.Emit(ctx, CellWriteSkipped, KeyKey.Field(c.key))
		return false, nil
	}

	prevValue, prevEncoded, prevPresent := c.value, c.encoded, c.present
	c.value, c.encoded, c.present = next, data, present

	if present {
		err = c.store.Set(ctx, c.key, data)
	} else {
		err = c.store.Delete(ctx, c.key)
	}
	if err != nil {
		c.value, c.encoded, c.present = prevValue, prevEncoded, prevPresent
		unlock()
		perr := &PersistError{Key: c.key, Err: err}
		c.fail(ctx, perr)
		return false, perr
	}
	c.seq = seq
	unlock()

	duration := c.clock.Now().Sub(start)
	c.metrics.OnWrite(c.key, duration)
	if present {
		capitan.Emit(ctx, CellWritten,
			KeyKey.Field(c.key),
			KeyContentType.Field(c.codec.ContentType()),
			KeyDuration.Field(duration),
		)
	} else {
		capitan.Emit(ctx, CellDeleted, KeyKey.Field(c.key))
	}

	change := Change{Key: c.key, Data: data, Present: present, Seq: seq}
	if present {
		change.Value = next
	}
	n := c.registry.Publish(ctx, change)
	c.metrics.OnPublish(c.key, n)
	return true, nil
}

// adopt installs a published change as the snapshot. The published value is
// taken verbatim when it has type T; otherwise Data is decoded, and empty
// Data is absence. It reports
// false when the change is older than the snapshot and was ignored.
func (c *Cell[T]) adopt(change Change) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if change.Seq != 0 && change.Seq < c.seq {
		return false, nil
	}

	var next T
	present := change.Present
	if present {
		if v, ok := change.Value.(T); ok {
			next = v
		} else if len(change.Data) == 0 {
			present = false
		} else if err := c.codec.Unmarshal(change.Data, &next); err != nil {
			return false, &DecodeError{Key: c.key, Data: change.Data, Err: err}
		}
	}
	data := change.Data
	if !present {
		data = nil
	}

	c.value, c.encoded, c.present, c.loaded = next, data, present, true
	if change.Seq > c.seq {
		c.seq = change.Seq
	}
	return true, nil
}

// sameEncoding reports whether data encodes the cached value: either it
// equals the stored bytes or the cached value's own encoding. Callers must
// hold mu.
func (c *Cell[T]) sameEncoding(data []byte) bool {
	if bytes.Equal(data, c.encoded) {
		return true
	}
	canonical, err := c.codec.Marshal(c.value)
	return err == nil && bytes.Equal(data, canonical)
}

// fail reports err to metrics and signals.
func (c *Cell[T]) fail(ctx context.Context, err error) {
	stage := stageOf(err)
	c.metrics.OnFailure(c.key, stage)

	key, msg := KeyKey.Field(c.key), KeyError.Field(err.Error())
	switch stage {
	case StageLoad:
		capitan.Emit(ctx, CellLoadFailed, key, msg)
	case StageDecode:
		capitan.Emit(ctx, CellDecodeFailed, key, msg)
	case StageEncode:
		capitan.Emit(ctx, CellEncodeFailed, key, msg)
	case StagePersist:
		capitan.Emit(ctx, CellPersistFailed, key, msg)
	}
}
