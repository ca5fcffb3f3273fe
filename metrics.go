package stash

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key cell and binding events.
type MetricsProvider interface {
	// OnStateChange is called when a binding transitions between states.
	OnStateChange(from, to State)

	// OnRead is called after a successful read. diverged is true when a
	// previously loaded snapshot differed from the stored entry.
	OnRead(key string, diverged bool)

	// OnWrite is called after a value is persisted.
	// Duration covers reconcile, encode and persist.
	OnWrite(key string, duration time.Duration)

	// OnWriteSkipped is called when a write was deduplicated.
	OnWriteSkipped(key string)

	// OnFailure is called when an operation fails.
	// Stage is one of "load", "decode", "encode" or "persist".
	OnFailure(key, stage string)

	// OnPublish is called after a change is delivered to n subscribers.
	OnPublish(key string, n int)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)          {}
func (NoOpMetricsProvider) OnRead(_ string, _ bool)           {}
func (NoOpMetricsProvider) OnWrite(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnWriteSkipped(_ string)           {}
func (NoOpMetricsProvider) OnFailure(_, _ string)             {}
func (NoOpMetricsProvider) OnPublish(_ string, _ int)         {}
