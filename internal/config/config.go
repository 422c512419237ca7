// Package config holds the process-wide settings and room defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config is loaded from an optional YAML file, then overridden by environment
// variables. Environment always wins so container deployments need no file.
type Config struct {
	Listen string `yaml:"listen"`

	// Storage backend selection: DatabaseURL -> Postgres, else DataDir ->
	// Badger, else in-memory.
	DatabaseURL string `yaml:"databaseUrl"`
	DataDir     string `yaml:"dataDir"`

	// RedisURL enables cross-instance live notifications over Redis pub/sub.
	RedisURL string `yaml:"redisUrl"`

	// PushURL is the base URL of the ntfy-style push relay. Empty disables push.
	PushURL string `yaml:"pushUrl"`

	// AdminToken gates the room registration endpoints.
	AdminToken string `yaml:"adminToken"`

	AllowAnonymous bool `yaml:"allowAnonymous"`

	// Ingest admission defaults; a registered room may override the interval.
	AnonymousMinIntervalMs  int64 `yaml:"anonymousMinIntervalMs"`
	RegisteredMinIntervalMs int64 `yaml:"registeredMinIntervalMs"`

	// Retention defaults; a registered room may override both caps.
	AnonymousMaxPoints  int `yaml:"anonymousMaxPoints"`
	RegisteredMaxPoints int `yaml:"registeredMaxPoints"`

	// Token-bucket budgets for the read endpoints, per client IP.
	GetCapacityPerMinute  int `yaml:"getCapacityPerMinute"`
	RoomIDProbesPerMinute int `yaml:"roomIdProbesPerMinute"`

	SweepInterval     time.Duration `yaml:"sweepInterval"`
	SweepInitialDelay time.Duration `yaml:"sweepInitialDelay"`

	// WebSocket viewer idle timeout; the deadline rolls on every received frame.
	WsIdleTimeout time.Duration `yaml:"wsIdleTimeout"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// Default returns the anonymous-room defaults the server ships with.
func Default() Config {
	return Config{
		Listen:                  ":8080",
		AllowAnonymous:          true,
		AnonymousMinIntervalMs:  900,
		RegisteredMinIntervalMs: 500,
		AnonymousMaxPoints:      100,
		RegisteredMaxPoints:     1000,
		GetCapacityPerMinute:    60,
		RoomIDProbesPerMinute:   10,
		SweepInterval:           time.Hour,
		SweepInitialDelay:       5 * time.Minute,
		WsIdleTimeout:           60 * time.Second,
		LogLevel:                "info",
		LogFormat:               "json",
	}
}

// Load reads the YAML file at path (skipped when path is empty or missing) and
// applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr(&c.Listen, "LISTEN")
	if v := os.Getenv("PORT"); v != "" {
		c.Listen = ":" + v
	}
	setStr(&c.DatabaseURL, "DATABASE_URL")
	setStr(&c.DataDir, "DATA_DIR")
	setStr(&c.RedisURL, "REDIS_URL")
	setStr(&c.PushURL, "PUSH_URL")
	setStr(&c.AdminToken, "ADMIN_TOKEN")
	setBool(&c.AllowAnonymous, "ALLOW_ANONYMOUS")
	setInt64(&c.AnonymousMinIntervalMs, "ANONYMOUS_MIN_INTERVAL_MS")
	setInt64(&c.RegisteredMinIntervalMs, "REGISTERED_MIN_INTERVAL_MS")
	setInt(&c.AnonymousMaxPoints, "ANONYMOUS_MAX_POINTS")
	setInt(&c.RegisteredMaxPoints, "REGISTERED_MAX_POINTS")
	setInt(&c.GetCapacityPerMinute, "GET_CAPACITY_PER_MINUTE")
	setInt(&c.RoomIDProbesPerMinute, "ROOM_ID_PROBES_PER_MINUTE")
	setDur(&c.SweepInterval, "SWEEP_INTERVAL")
	setDur(&c.SweepInitialDelay, "SWEEP_INITIAL_DELAY")
	setDur(&c.WsIdleTimeout, "WS_IDLE_TIMEOUT")
	setStr(&c.LogLevel, "LOG_LEVEL")
	setStr(&c.LogFormat, "LOG_FORMAT")
}

func (c *Config) validate() error {
	if c.AnonymousMinIntervalMs < 0 || c.RegisteredMinIntervalMs < 0 {
		return fmt.Errorf("min interval must be >= 0")
	}
	if c.AnonymousMaxPoints <= 0 || c.RegisteredMaxPoints <= 0 {
		return fmt.Errorf("max points must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweepInterval must be > 0")
	}
	if c.WsIdleTimeout <= 0 {
		return fmt.Errorf("wsIdleTimeout must be > 0")
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDur(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
