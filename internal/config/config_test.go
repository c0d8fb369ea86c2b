package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.MetricsPort != 9100 {
		t.Fatalf("unexpected port defaults: %+v", cfg)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Fatalf("unexpected sync interval: %v", cfg.SyncInterval)
	}
	if cfg.AdminAddr != "localhost:9092" {
		t.Fatalf("unexpected admin addr: %s", cfg.AdminAddr)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streamhub.yml")
	raw := []byte(`http_port: 9999
admin_addr: broker:9092
sync_interval: 5s
log:
  level: debug
  json: true
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 9999 {
		t.Fatalf("http_port not overridden: %d", cfg.HTTPPort)
	}
	if cfg.AdminAddr != "broker:9092" {
		t.Fatalf("admin_addr not overridden: %s", cfg.AdminAddr)
	}
	if cfg.SyncInterval != 5*time.Second {
		t.Fatalf("sync_interval not parsed: %v", cfg.SyncInterval)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Fatalf("log section not parsed: %+v", cfg.Log)
	}
	// untouched fields keep their defaults
	if cfg.MetricsPort != 9100 {
		t.Fatalf("metrics_port default lost: %d", cfg.MetricsPort)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadBootstrap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "consumers.yml")
	raw := []byte(`consumers:
  - broker_addr: localhost:9092
    topic: orders
    consumer_group: orders-group
    auto_start: true
    sinks:
      - kind: file_sink
        config:
          file_path: /var/log/orders.log
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b, err := LoadBootstrap(path)
	if err != nil {
		t.Fatalf("load bootstrap: %v", err)
	}
	if len(b.Consumers) != 1 {
		t.Fatalf("want 1 consumer, got %d", len(b.Consumers))
	}
	c := b.Consumers[0]
	if c.Topic != "orders" || !c.AutoStart || len(c.Sinks) != 1 {
		t.Fatalf("unexpected consumer: %+v", c)
	}
	if c.Sinks[0].Kind != "file_sink" || c.Sinks[0].Config["file_path"] != "/var/log/orders.log" {
		t.Fatalf("unexpected sink: %+v", c.Sinks[0])
	}
}
