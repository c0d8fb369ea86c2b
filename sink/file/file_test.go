package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"streamhub/internal/broker"
	"streamhub/sink"
)

func TestAppendsPayloadAsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	s, err := New(sink.Config{"file_path": path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for _, payload := range []string{"one", "two"} {
		if err := s.Process(context.Background(), &broker.Message{Value: []byte(payload)}); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "one\ntwo\n" {
		t.Fatalf("unexpected contents: %q", raw)
	}
}

func TestMissingPathIsConfigError(t *testing.T) {
	_, err := New(sink.Config{})
	if !sink.IsConfigError(err) {
		t.Fatalf("want ConfigError, got %v", err)
	}
}

func TestProcessAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	s, err := New(sink.Config{"file_path": path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close should be idempotent: %v", err)
	}
	if err := s.Process(context.Background(), &broker.Message{Value: []byte("x")}); err == nil {
		t.Fatal("expected error after close")
	}
}
