package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"streamhub/internal/logging"
)

type LogCfg struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type Config struct {
	HTTPPort    int    `koanf:"http_port"`
	MetricsPort int    `koanf:"metrics_port"`

	// KafkaVersion pins the broker protocol version for all connections.
	KafkaVersion string `koanf:"kafka_version"`

	// AdminAddr is the bootstrap address used for group/offset queries.
	AdminAddr string `koanf:"admin_addr"`

	// DatabaseDSN enables durable journal syncing when set.
	DatabaseDSN string `koanf:"database_dsn"`

	// SyncInterval is the cadence of the background journal drain.
	SyncInterval time.Duration `koanf:"sync_interval"`

	// BootstrapFile optionally declares consumers to create at startup.
	BootstrapFile string `koanf:"bootstrap_file"`

	Log LogCfg `koanf:"log"`
}

// Load merges YAML (if present) with env-vars
// (prefix `STREAMHUB__`, delimiter `__`).
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	_ = k.Load(env.Provider(logging.EnvPrefix+"_", "__", nil), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
	if c.AdminAddr == "" {
		c.AdminAddr = "localhost:9092"
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = 30 * time.Second
	}
}
