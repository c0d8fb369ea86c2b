package sink

import (
	"context"
	"errors"
	"fmt"

	"streamhub/internal/broker"
)

// Sink is the common behaviour every downstream processor exposes.
type Sink interface {
	Process(ctx context.Context, msg *broker.Message) error
	Close() error // idempotent
}

// Config is the opaque key/value configuration of one sink definition.
type Config map[string]string

// ConfigError marks a sink definition that can never build: unknown kind or
// missing required keys. Callers abort the enclosing operation on it.
type ConfigError struct {
	Kind   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sink %q: %s", e.Kind, e.Reason)
}

// IsConfigError reports whether err stems from a bad sink definition.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Required fetches a mandatory config key or fails with a ConfigError.
func Required(kind string, cfg Config, key string) (string, error) {
	v, ok := cfg[key]
	if !ok || v == "" {
		return "", &ConfigError{Kind: kind, Reason: fmt.Sprintf("missing required config key %q", key)}
	}
	return v, nil
}

/*──────── registry ───────*/

type factory = func(Config) (Sink, error)

var reg = map[string]factory{}

// Register is called from each sink package's init().
func Register(kind string, f factory) { reg[kind] = f }

// Build returns a live sink for the given kind, or a ConfigError for an
// unrecognized kind.
func Build(kind string, cfg Config) (Sink, error) {
	if f, ok := reg[kind]; ok {
		return f(cfg)
	}
	return nil, &ConfigError{Kind: kind, Reason: "unknown sink kind"}
}
