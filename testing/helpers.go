// Package testing provides test utilities for stash stores and bindings.
//
// RunStoreTests is a conformance suite every Store implementation runs
// against its own backend:
//
//	func TestStore_Conformance(t *testing.T) {
//	    stashtest.RunStoreTests(t, func(t *testing.T) stash.Store {
//	        return newStore(t)
//	    })
//	}
package testing

import (
	"bytes"
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/zoobzio/stash"
)

// TestConfig is a standard value type for binding tests.
type TestConfig struct {
	Port    int    `yaml:"port" json:"port"`
	Host    string `yaml:"host" json:"host"`
	Timeout int    `yaml:"timeout" json:"timeout"`
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// RequireState fails the test immediately if the binding is not in the expected state.
func RequireState[T any](t *testing.T, b *stash.Binding[T], expected stash.State) {
	t.Helper()
	if got := b.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// RequireValue fails the test if the binding holds no value or the value
// differs from want.
func RequireValue[T any](t *testing.T, b *stash.Binding[T], want T) {
	t.Helper()
	got, ok := b.Value()
	if !ok {
		t.Fatalf("expected value %+v, got none", want)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected value %+v, got %+v", want, got)
	}
}

// RequireAbsent fails the test if the binding holds a value.
func RequireAbsent[T any](t *testing.T, b *stash.Binding[T]) {
	t.Helper()
	if got, ok := b.Value(); ok {
		t.Fatalf("expected no value, got %+v", got)
	}
}

// MustBind binds key and closes the binding when the test ends.
func MustBind[T any](t *testing.T, key string, store stash.Store, opts ...stash.Option) *stash.Binding[T] {
	t.Helper()
	b, err := stash.Bind[T](context.Background(), key, store, opts...)
	if err != nil {
		t.Fatalf("Bind(%q) error = %v", key, err)
	}
	t.Cleanup(b.Close)
	return b
}

// RunStoreTests checks the Store contract against stores produced by
// newStore. Each subtest gets a fresh store; stores sharing a backend should
// be isolated by prefix or table. Bindings read an empty entry as absent.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) stash.Store) {
	t.Helper()

	t.Run("missing key is absent", func(t *testing.T) {
		store := newStore(t)
		data, ok, err := store.Get(context.Background(), "missing")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok || data != nil {
			t.Errorf("expected absent, got %q ok=%v", data, ok)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		mustSet(t, store, "alpha", []byte(`{"port":8080}`))
		requireEntry(t, store, "alpha", []byte(`{"port":8080}`))

		mustSet(t, store, "alpha", []byte(`{"port":9090}`))
		requireEntry(t, store, "alpha", []byte(`{"port":9090}`))

		if _, ok, _ := store.Get(ctx, "beta"); ok {
			t.Error("write to alpha created beta")
		}
	})

	t.Run("binary data", func(t *testing.T) {
		store := newStore(t)
		data := []byte{0x00, 0xff, '\n', 0x7f}
		mustSet(t, store, "binary", data)
		requireEntry(t, store, "binary", data)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		mustSet(t, store, "alpha", []byte("1"))
		mustSet(t, store, "beta", []byte("2"))

		if err := store.Delete(ctx, "alpha"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, ok, err := store.Get(ctx, "alpha"); err != nil || ok {
			t.Errorf("expected alpha absent after delete, ok=%v err=%v", ok, err)
		}
		requireEntry(t, store, "beta", []byte("2"))

		if err := store.Delete(ctx, "alpha"); err != nil {
			t.Errorf("deleting an absent key should succeed, got %v", err)
		}
	})

	t.Run("bindings share writes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		registry := stash.NewRegistry()

		writer := MustBind[TestConfig](t, "shared", store, stash.WithRegistry(registry))
		reader := MustBind[TestConfig](t, "shared", store, stash.WithRegistry(registry))
		RequireAbsent(t, reader)

		want := TestConfig{Port: 8080, Host: "localhost", Timeout: 30}
		if _, err := writer.Set(ctx, want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		RequireValue(t, reader, want)
		RequireState(t, reader, stash.StateHealthy)

		if _, err := writer.Delete(ctx); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		RequireAbsent(t, reader)
	})

	t.Run("empty entry binds as absent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		mustSet(t, store, "empty", []byte{})

		b := MustBind[TestConfig](t, "empty", store, stash.WithRegistry(stash.NewRegistry()))
		RequireAbsent(t, b)
		RequireState(t, b, stash.StateHealthy)

		want := TestConfig{Port: 8080, Host: "localhost"}
		if _, err := b.Set(ctx, want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		RequireValue(t, b, want)
	})

	t.Run("read picks up direct writes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		b := MustBind[TestConfig](t, "direct", store, stash.WithRegistry(stash.NewRegistry()))
		mustSet(t, store, "direct", []byte(`{"port":1,"host":"a","timeout":2}`))

		got, ok, err := b.Read(ctx)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !ok || got != (TestConfig{Port: 1, Host: "a", Timeout: 2}) {
			t.Errorf("expected direct write, got %+v ok=%v", got, ok)
		}
	})
}

func mustSet(t *testing.T, store stash.Store, key string, data []byte) {
	t.Helper()
	if err := store.Set(context.Background(), key, data); err != nil {
		t.Fatalf("Set(%q) error = %v", key, err)
	}
}

func requireEntry(t *testing.T, store stash.Store, key string, want []byte) {
	t.Helper()
	got, ok, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	if !ok {
		t.Fatalf("expected %q to be present", key)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Get(%q) = %q, want %q", key, got, want)
	}
}
