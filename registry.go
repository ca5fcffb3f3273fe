package stash

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
)

// Change is the notification delivered to subscribers of a key after a write.
type Change struct {
	// Key is the key that changed.
	Key string

	// Value is the writer's in-memory value. Subscribers holding the same
	// type adopt it verbatim instead of decoding Data again.
	Value any

	// Data is the encoding that was persisted. Nil when Present is false.
	Data []byte

	// Present is false when the change removed the entry.
	Present bool

	// Seq orders writes made through cells sharing the registry. It grows
	// across all keys of the registry. Subscribers ignore a change older than
	// one they already adopted. Zero means unordered.
	Seq uint64
}

// subscription is one registered callback.
type subscription struct {
	fn     func(context.Context, Change)
	active atomic.Bool
}

// Registry maps keys to ordered subscriber lists and fans changes out to them.
//
// Lists are copy-on-write: Publish iterates the slice that was current when
// it started, and Subscribe/Unsubscribe install a new slice. Callbacks may
// therefore subscribe, unsubscribe or publish re-entrantly. A callback whose
// unsubscribe has run is never invoked again, even by a publish already in
// progress.
type Registry struct {
	mu      sync.Mutex
	subs    map[string][]*subscription
	writers map[string]*keyWriter
	seq     atomic.Uint64
}

// keyWriter serializes writes to one key across cells. It is removed from
// the registry once no writer holds or waits for it.
type keyWriter struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		subs:    make(map[string][]*subscription),
		writers: make(map[string]*keyWriter),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when no
// WithRegistry option is given.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Subscribe registers fn for changes to key and returns its unsubscribe
// function. Unsubscribe is idempotent.
func (r *Registry) Subscribe(key string, fn func(context.Context, Change)) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	r.mu.Lock()
	current := r.subs[key]
	next := make([]*subscription, len(current), len(current)+1)
	copy(next, current)
	r.subs[key] = append(next, sub)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			r.remove(key, sub)
		})
	}
}

// remove installs a copy of key's list without sub.
func (r *Registry) remove(key string, sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.subs[key]
	next := make([]*subscription, 0, len(current))
	for _, s := range current {
		if s != sub {
			next = append(next, s)
		}
	}
	if len(next) == 0 {
		delete(r.subs, key)
		return
	}
	r.subs[key] = next
}

// Publish delivers change to every active subscriber of change.Key, in
// registration order, on the calling goroutine. It returns the number of
// callbacks invoked.
func (r *Registry) Publish(ctx context.Context, change Change) int {
	r.mu.Lock()
	snapshot := r.subs[change.Key]
	r.mu.Unlock()

	delivered := 0
	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		sub.fn(ctx, change)
		delivered++
	}

	capitan.Emit(ctx, RegistryPublished,
		KeyKey.Field(change.Key),
		KeySubscribers.Field(delivered),
	)
	return delivered
}

// acquire blocks until no other cell is writing key and returns the
// sequence number for the next write together with its release function.
func (r *Registry) acquire(key string) (seq uint64, release func()) {
	r.mu.Lock()
	w, ok := r.writers[key]
	if !ok {
		w = &keyWriter{}
		r.writers[key] = w
	}
	w.refs++
	r.mu.Unlock()

	w.mu.Lock()
	seq = r.seq.Add(1)
	return seq, func() {
		w.mu.Unlock()
		r.mu.Lock()
		w.refs--
		if w.refs == 0 {
			delete(r.writers, key)
		}
		r.mu.Unlock()
	}
}

// Subscribers returns the number of callbacks currently registered for key.
func (r *Registry) Subscribers(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[key])
}
