package stash

import (
	"context"
	"sync"
)

// DefaultWatchBuffer is the channel capacity used by Watch when buffer <= 0.
const DefaultWatchBuffer = 16

// Watch subscribes to key and returns a channel that receives its changes.
//
// Publishing never blocks on a watcher: when the channel buffer is full the
// change is dropped for that watcher. Consumers that must not miss updates
// should re-read the key through a Cell after draining. The channel is
// closed and the subscription removed when ctx is canceled.
func (r *Registry) Watch(ctx context.Context, key string, buffer int) <-chan Change {
	if buffer <= 0 {
		buffer = DefaultWatchBuffer
	}
	out := make(chan Change, buffer)

	var (
		mu     sync.Mutex
		closed bool
	)
	unsubscribe := r.Subscribe(key, func(_ context.Context, change Change) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- change:
		default:
			// watcher is slow, drop the change
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out
}
