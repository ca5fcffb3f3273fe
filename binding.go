package stash

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Binding is one consumer's live view of a key.
//
// A binding owns a Cell and is subscribed to its key in the Registry. Every
// write published for that key, including the binding's own, is adopted by
// the binding and passed to its OnChange listeners, so all bindings of a key
// observe the same value without reading the store.
type Binding[T any] struct {
	id      string
	store   Store
	cfg     *config
	clock   clockz.Clock
	metrics MetricsProvider

	state     atomic.Int32
	lastError atomic.Pointer[error]
	history   *failureRing

	mu          sync.Mutex
	cell        *Cell[T]
	unsubscribe func()
	closed      bool

	listenersMu sync.Mutex
	listeners   map[uint64]func(T, bool)
	nextID      uint64
}

// Bind attaches a new binding to key and performs the initial read.
//
// If the initial read fails, Bind returns the binding together with the
// error. The binding stays subscribed and picks up the next value published
// for the key.
//
// Example:
//
//	b, err := stash.Bind[int](ctx, "counter", store)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	b.OnChange(func(v int, ok bool) { render(v) })
//	_, err = b.Update(ctx, func(old int, _ bool) int { return old + 1 })
func Bind[T any](ctx context.Context, key string, store Store, opts ...Option) (*Binding[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if store == nil {
		return nil, ErrNilStore
	}
	cfg := newConfig(opts)
	b := &Binding[T]{
		id:        uuid.NewString(),
		store:     store,
		cfg:       cfg,
		clock:     cfg.clock,
		metrics:   cfg.metrics,
		history:   newFailureRing(cfg.errorHistory),
		listeners: make(map[uint64]func(T, bool)),
	}
	b.state.Store(int32(StateLoading))

	if err := b.attach(ctx, key); err != nil {
		return b, err
	}
	return b, nil
}

// ID returns the binding's unique identifier.
func (b *Binding[T]) ID() string {
	return b.id
}

// Key returns the key the binding is attached to.
func (b *Binding[T]) Key() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cell.Key()
}

// State returns the current state of the binding.
func (b *Binding[T]) State() State {
	return State(b.state.Load())
}

// LastError returns the last error encountered, or nil after a success.
func (b *Binding[T]) LastError() error {
	ptr := b.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent failures, oldest first.
// Returns nil if error history is not enabled (see WithErrorHistory).
func (b *Binding[T]) ErrorHistory() []Failure {
	return b.history.all()
}

// Value returns the value the binding last observed, without reading the
// store. ok is false when the key has no entry.
func (b *Binding[T]) Value() (T, bool) {
	cell, err := b.current()
	if err != nil {
		var zero T
		return zero, false
	}
	return cell.snapshot()
}

// Read reconciles with the store and returns the current value, picking up
// changes made outside the registry.
func (b *Binding[T]) Read(ctx context.Context) (T, bool, error) {
	cell, err := b.current()
	if err != nil {
		var zero T
		return zero, false, err
	}
	v, ok, err := cell.Read(ctx)
	b.record(ctx, cell.Key(), err)
	return v, ok, err
}

// Set writes v to the key. It reports whether the stored value changed.
func (b *Binding[T]) Set(ctx context.Context, v T) (bool, error) {
	cell, err := b.current()
	if err != nil {
		return false, err
	}
	changed, err := cell.Write(ctx, v)
	b.record(ctx, cell.Key(), err)
	return changed, err
}

// Update writes the result of fn applied to the freshest stored value.
// fn may read the binding; it runs again if the entry changes before the
// result is stored.
func (b *Binding[T]) Update(ctx context.Context, fn func(old T, ok bool) T) (bool, error) {
	cell, err := b.current()
	if err != nil {
		return false, err
	}
	changed, err := cell.Update(ctx, fn)
	b.record(ctx, cell.Key(), err)
	return changed, err
}

// Delete removes the key's entry; every binding of the key observes absence.
func (b *Binding[T]) Delete(ctx context.Context) (bool, error) {
	cell, err := b.current()
	if err != nil {
		return false, err
	}
	changed, err := cell.Delete(ctx)
	b.record(ctx, cell.Key(), err)
	return changed, err
}

// OnChange registers fn to be called with every value the binding adopts,
// after attach and after each notification. It returns a function that
// removes the listener.
func (b *Binding[T]) OnChange(fn func(value T, ok bool)) (remove func()) {
	b.listenersMu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.listenersMu.Unlock()

	return func() {
		b.listenersMu.Lock()
		delete(b.listeners, id)
		b.listenersMu.Unlock()
	}
}

// Rebind moves the binding to key. The old subscription is removed before
// the new one is registered, so the binding is never subscribed to two keys.
// Rebinding to the current key is a no-op.
func (b *Binding[T]) Rebind(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.cell != nil && b.cell.Key() == key {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	b.detach(ctx)
	b.transition(ctx, StateLoading)
	return b.attach(ctx, key)
}

// Close detaches the binding. It is safe to call more than once.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	ctx := context.Background()
	b.detach(ctx)
	b.transition(ctx, StateClosed)
}

// attach subscribes to key and performs the initial read. It returns
// ErrClosed without subscribing if the binding was closed meanwhile.
func (b *Binding[T]) attach(ctx context.Context, key string) error {
	cell := newCell[T](key, b.store, b.cfg)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.cell = cell
	b.unsubscribe = b.cfg.registry.Subscribe(key, func(ctx context.Context, change Change) {
		b.notify(ctx, cell, change)
	})
	b.mu.Unlock()

	capitan.Emit(ctx, BindingAttached,
		KeyKey.Field(key),
		KeyBinding.Field(b.id),
	)

	v, ok, err := cell.Read(ctx)
	b.record(ctx, key, err)
	if err != nil {
		return err
	}
	b.emit(v, ok)
	return nil
}

// detach removes the current subscription, if any.
func (b *Binding[T]) detach(ctx context.Context) {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	var key string
	if b.cell != nil {
		key = b.cell.Key()
	}
	b.mu.Unlock()

	if unsubscribe == nil {
		return
	}
	unsubscribe()
	capitan.Emit(ctx, BindingDetached,
		KeyKey.Field(key),
		KeyBinding.Field(b.id),
	)
}

// notify adopts a published change. Changes for a cell the binding has
// since moved away from are ignored.
func (b *Binding[T]) notify(ctx context.Context, cell *Cell[T], change Change) {
	b.mu.Lock()
	stale := b.cell != cell || b.closed
	b.mu.Unlock()
	if stale {
		return
	}

	adopted, err := cell.adopt(change)
	if err != nil {
		b.fail(ctx, change.Key, err)
		return
	}
	if !adopted {
		return
	}
	b.succeed(ctx)
	v, ok := cell.snapshot()
	b.emit(v, ok)
}

// emit calls every OnChange listener. Listeners are copied first so they
// may add or remove listeners.
func (b *Binding[T]) emit(v T, ok bool) {
	b.listenersMu.Lock()
	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	b.listenersMu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		b.listenersMu.Lock()
		fn, found := b.listeners[id]
		b.listenersMu.Unlock()
		if found {
			fn(v, ok)
		}
	}
}

// current returns the active cell or ErrClosed.
func (b *Binding[T]) current() (*Cell[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.cell, nil
}

// record updates state and error tracking after an operation.
func (b *Binding[T]) record(ctx context.Context, key string, err error) {
	if err != nil {
		b.fail(ctx, key, err)
		return
	}
	b.succeed(ctx)
}

func (b *Binding[T]) succeed(ctx context.Context) {
	b.lastError.Store(nil)
	b.transition(ctx, StateHealthy)
}

func (b *Binding[T]) fail(ctx context.Context, key string, err error) {
	e := err
	b.lastError.Store(&e)
	b.history.push(Failure{
		Key:   key,
		Stage: stageOf(err),
		Err:   err,
		At:    b.clock.Now(),
	})
	b.transition(ctx, b.failureState())
}

// failureState returns the appropriate failure state based on whether a
// value has ever been observed.
func (b *Binding[T]) failureState() State {
	switch b.State() {
	case StateLoading, StateEmpty:
		return StateEmpty
	default:
		return StateDegraded
	}
}

// transition updates the state and emits a state change event if changed.
// A closed binding stays closed.
func (b *Binding[T]) transition(ctx context.Context, next State) {
	for {
		current := b.State()
		if current == next || (current == StateClosed && next != StateClosed) {
			return
		}
		if b.state.CompareAndSwap(int32(current), int32(next)) {
			b.metrics.OnStateChange(current, next)
			capitan.Emit(ctx, BindingStateChanged,
				KeyBinding.Field(b.id),
				KeyOldState.Field(current.String()),
				KeyNewState.Field(next.String()),
			)
			return
		}
	}
}
