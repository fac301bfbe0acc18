package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Reader   ReaderConfig   `yaml:"reader"`
	Database DatabaseConfig `yaml:"database"`
	Checkin  CheckinConfig  `yaml:"checkin"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ReaderConfig holds the keystroke decoding configuration.
type ReaderConfig struct {
	IdleTimeoutMS  int           `yaml:"idle_timeout_ms"`
	IdleTimeout    time.Duration `yaml:"-"` // Ignored by YAML parser
	Source         string        `yaml:"source"`
	CheckinEnabled *bool         `yaml:"checkin_enabled"`
	EnrollEnabled  bool          `yaml:"enroll_enabled"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// CheckinConfig holds the check-in dispatch configuration.
type CheckinConfig struct {
	DedupWindowSeconds int              `yaml:"dedup_window_seconds"`
	DedupWindow        time.Duration    `yaml:"-"`
	WorkerPool         WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the check-in worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	SourceWebSocket = "websocket"
	SourceTerminal  = "terminal"
)

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Reader.IdleTimeoutMS <= 0 {
		cfg.Reader.IdleTimeoutMS = 100
	}
	cfg.Reader.IdleTimeout = time.Duration(cfg.Reader.IdleTimeoutMS) * time.Millisecond

	switch cfg.Reader.Source {
	case "":
		cfg.Reader.Source = SourceWebSocket
	case SourceWebSocket, SourceTerminal:
	default:
		return fmt.Errorf("unknown reader.source %q", cfg.Reader.Source)
	}

	if cfg.Reader.CheckinEnabled == nil {
		enabled := true
		cfg.Reader.CheckinEnabled = &enabled
	}

	if cfg.Checkin.DedupWindowSeconds < 0 {
		cfg.Checkin.DedupWindowSeconds = 0
	} else if cfg.Checkin.DedupWindowSeconds == 0 {
		cfg.Checkin.DedupWindowSeconds = 5
	}
	cfg.Checkin.DedupWindow = time.Duration(cfg.Checkin.DedupWindowSeconds) * time.Second

	if cfg.Checkin.WorkerPool.Size <= 0 {
		logrus.Info("checkin.worker_pool.size is not set or invalid; defaulting to 1")
		cfg.Checkin.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}
