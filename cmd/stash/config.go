package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/zoobzio/stash"
)

// Config selects and configures the backend.
type Config struct {
	Backend    string        `env:"STASH_BACKEND"    envDefault:"file"`
	Path       string        `env:"STASH_PATH"       envDefault:".stash"`
	Addr       string        `env:"STASH_ADDR"`
	DSN        string        `env:"STASH_DSN"`
	Prefix     string        `env:"STASH_PREFIX"`
	Codec      string        `env:"STASH_CODEC"      envDefault:"json"`
	Namespace  string        `env:"STASH_NAMESPACE"  envDefault:"default"`
	Project    string        `env:"STASH_PROJECT"`
	Kubeconfig string        `env:"KUBECONFIG"`
	Timeout    time.Duration `env:"STASH_TIMEOUT"    envDefault:"10s"`
}

// loadConfig parses Config from the environment.
func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// codec returns the configured codec.
func (c Config) codec() (stash.Codec, error) {
	switch c.Codec {
	case "json", "":
		return stash.JSONCodec{}, nil
	case "yaml":
		return stash.YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", c.Codec)
	}
}
