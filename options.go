package stash

import "github.com/zoobzio/clockz"

// config holds the options shared by cells and bindings.
type config struct {
	codec        Codec
	registry     *Registry
	clock        clockz.Clock
	metrics      MetricsProvider
	errorHistory int
}

// Option configures a Cell or Binding.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{
		codec:    JSONCodec{},
		registry: DefaultRegistry(),
		clock:    clockz.RealClock,
		metrics:  NoOpMetricsProvider{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithCodec sets the codec used to encode values for the store.
// Default: JSONCodec. All bindings of a key must agree on the codec.
func WithCodec(codec Codec) Option {
	return func(c *config) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithRegistry sets the subscription registry changes are published on.
// Default: the process-wide registry returned by DefaultRegistry.
// Bindings only see each other's writes when they share a registry.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithClock sets a custom clock for timestamps and durations.
// Use this with clockz.FakeClock for deterministic tests.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics sets a metrics provider for observability integration.
func WithMetrics(provider MetricsProvider) Option {
	return func(c *config) {
		if provider != nil {
			c.metrics = provider
		}
	}
}

// WithErrorHistory sets the number of recent failures a binding retains.
// Use 0 (default) to only retain the most recent error via LastError().
func WithErrorHistory(n int) Option {
	return func(c *config) {
		c.errorHistory = n
	}
}
