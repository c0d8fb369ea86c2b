package sink

import (
	"context"
	"testing"

	"streamhub/internal/broker"
)

type nopSink struct{}

func (nopSink) Process(context.Context, *broker.Message) error { return nil }
func (nopSink) Close() error                                   { return nil }

func TestBuildUnknownKind(t *testing.T) {
	_, err := Build("no_such_kind", Config{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsConfigError(err) {
		t.Fatalf("want ConfigError, got %v", err)
	}
}

func TestBuildRegisteredKind(t *testing.T) {
	Register("nop", func(Config) (Sink, error) { return nopSink{}, nil })
	s, err := Build("nop", Config{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if s == nil {
		t.Fatal("nil sink")
	}
}

func TestRequired(t *testing.T) {
	cfg := Config{"path": "/tmp/x"}
	if v, err := Required("k", cfg, "path"); err != nil || v != "/tmp/x" {
		t.Fatalf("required: %q %v", v, err)
	}
	if _, err := Required("k", cfg, "missing"); !IsConfigError(err) {
		t.Fatalf("want ConfigError, got %v", err)
	}
}
