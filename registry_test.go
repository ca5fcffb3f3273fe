package stash

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_PublishInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.Subscribe("k", func(_ context.Context, _ Change) {
			order = append(order, i)
		})
	}

	n := r.Publish(ctx, Change{Key: "k", Value: 1, Data: []byte("1"), Present: true})
	if n != 3 {
		t.Errorf("expected 3 deliveries, got %d", n)
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("unexpected order %v", order)
	}
}

func TestRegistry_PublishIsKeyScoped(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var got []string
	r.Subscribe("a", func(_ context.Context, c Change) { got = append(got, "a:"+c.Key) })
	r.Subscribe("b", func(_ context.Context, c Change) { got = append(got, "b:"+c.Key) })

	r.Publish(ctx, Change{Key: "a", Present: true})
	if len(got) != 1 || got[0] != "a:a" {
		t.Errorf("unexpected deliveries %v", got)
	}
	if n := r.Publish(ctx, Change{Key: "none"}); n != 0 {
		t.Errorf("expected 0 deliveries for unknown key, got %d", n)
	}
}

func TestRegistry_UnsubscribeIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	calls := 0
	unsubscribe := r.Subscribe("k", func(_ context.Context, _ Change) { calls++ })
	keep := r.Subscribe("k", func(_ context.Context, _ Change) {})
	defer keep()

	unsubscribe()
	unsubscribe()

	if n := r.Subscribers("k"); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
	r.Publish(ctx, Change{Key: "k"})
	if calls != 0 {
		t.Errorf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestRegistry_UnsubscribeLastSubscriber(t *testing.T) {
	r := NewRegistry()

	unsubscribe := r.Subscribe("k", func(_ context.Context, _ Change) {})
	unsubscribe()
	unsubscribe()

	if n := r.Subscribers("k"); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}

func TestRegistry_UnsubscribeDuringPublish(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var (
		calls       []string
		unsubscribe func()
	)
	r.Subscribe("k", func(_ context.Context, _ Change) {
		calls = append(calls, "first")
		unsubscribe()
	})
	unsubscribe = r.Subscribe("k", func(_ context.Context, _ Change) {
		calls = append(calls, "second")
	})
	r.Subscribe("k", func(_ context.Context, _ Change) {
		calls = append(calls, "third")
	})

	r.Publish(ctx, Change{Key: "k"})

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "third" {
		t.Errorf("expected [first third], got %v", calls)
	}
}

func TestRegistry_SelfUnsubscribeDoesNotSkip(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var (
		calls []string
		self  func()
	)
	self = r.Subscribe("k", func(_ context.Context, _ Change) {
		calls = append(calls, "self")
		self()
	})
	r.Subscribe("k", func(_ context.Context, _ Change) {
		calls = append(calls, "next")
	})

	r.Publish(ctx, Change{Key: "k"})
	r.Publish(ctx, Change{Key: "k"})

	want := []string{"self", "next", "next"}
	if len(calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], calls[i])
		}
	}
}

func TestRegistry_SubscribeDuringPublish(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	late := 0
	subscribed := false
	r.Subscribe("k", func(_ context.Context, _ Change) {
		if subscribed {
			return
		}
		subscribed = true
		r.Subscribe("k", func(_ context.Context, _ Change) { late++ })
	})

	r.Publish(ctx, Change{Key: "k"})
	if late != 0 {
		t.Errorf("subscriber added during publish was invoked %d times", late)
	}

	r.Publish(ctx, Change{Key: "k"})
	if late != 1 {
		t.Errorf("expected late subscriber to see the next publish, got %d", late)
	}
}

func TestRegistry_CascadingPublish(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var seen []int
	r.Subscribe("k", func(ctx context.Context, c Change) {
		v := c.Value.(int)
		seen = append(seen, v)
		if v < 3 {
			r.Publish(ctx, Change{Key: "k", Value: v + 1, Present: true})
		}
	})

	r.Publish(ctx, Change{Key: "k", Value: 1, Present: true})

	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("unexpected cascade %v", seen)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsubscribe := r.Subscribe("k", func(_ context.Context, _ Change) {})
			unsubscribe()
		}()
		go func() {
			defer wg.Done()
			r.Publish(ctx, Change{Key: "k"})
		}()
	}
	wg.Wait()

	if n := r.Subscribers("k"); n != 0 {
		t.Errorf("expected all subscribers removed, got %d", n)
	}
}

func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("expected DefaultRegistry to return the same instance")
	}
}

func TestRegistry_AcquireSerializesWriters(t *testing.T) {
	r := NewRegistry()

	seq, release := r.acquire("k")
	if seq != 1 {
		t.Errorf("expected seq 1, got %d", seq)
	}

	acquired := make(chan uint64)
	go func() {
		next, release := r.acquire("k")
		release()
		acquired <- next
	}()

	// A different key is not blocked.
	other, releaseOther := r.acquire("other")
	releaseOther()
	if other != 2 {
		t.Errorf("expected seq 2, got %d", other)
	}

	release()
	if next := <-acquired; next != 3 {
		t.Errorf("expected seq 3, got %d", next)
	}
}

func TestRegistry_AcquirePrunesIdleWriters(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 100; i++ {
		_, release := r.acquire(fmt.Sprintf("key-%d", i))
		release()
	}

	r.mu.Lock()
	n := len(r.writers)
	r.mu.Unlock()
	if n != 0 {
		t.Errorf("expected idle writers to be pruned, %d remain", n)
	}

	// Sequence numbers keep growing after a key's writer was pruned.
	seq, release := r.acquire("key-0")
	release()
	if seq != 101 {
		t.Errorf("expected seq 101, got %d", seq)
	}
}
