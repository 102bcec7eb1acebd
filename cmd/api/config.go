package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	leaderboardsvc "github.com/multitask/scoreboard/src/app/leaderboard"
)

const (
	StorageMemory   = "memory"
	StoragePebble   = "pebble"
	StoragePostgres = "postgres"
)

type Config struct {
	HTTPAddress string        `yaml:"http_address"`
	Secret      string        `yaml:"secret"`
	APIKey      string        `yaml:"api_key"`
	CORSOrigins []string      `yaml:"cors_origins"`
	Storage     StorageConfig `yaml:"storage"`
	Policy      PolicyConfig  `yaml:"policy"`
	Log         LogConfig     `yaml:"log"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgres_dsn"`
	PebblePath  string `yaml:"pebble_path"`
}

type PolicyConfig struct {
	MaxDrift time.Duration `yaml:"max_drift"`
	TopLimit int           `yaml:"top_limit"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func defaultConfig() Config {
	return Config{
		HTTPAddress: ":8080",
		Storage: StorageConfig{
			Driver:     StorageMemory,
			PebblePath: "data/scores",
		},
		Policy: PolicyConfig{
			MaxDrift: leaderboardsvc.DefaultMaxDrift,
			TopLimit: leaderboardsvc.DefaultTopLimit,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// loadConfig layers defaults, the optional YAML file named by SCOREBOARD_CONFIG and
// environment overrides. The returned Config is usable for logging even when err is set.
func loadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := getEnv("SCOREBOARD_CONFIG", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.HTTPAddress = getEnv("SCOREBOARD_HTTP_ADDR", c.HTTPAddress)
	c.Secret = getEnv("SCORE_SECRET", c.Secret)
	c.APIKey = getEnv("SCOREBOARD_API_KEY", c.APIKey)
	if origins := getEnv("SCOREBOARD_CORS_ORIGINS", ""); origins != "" {
		c.CORSOrigins = strings.Split(origins, ",")
	}
	c.Storage.Driver = getEnv("SCOREBOARD_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.PostgresDSN = getEnv("SCOREBOARD_POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.PebblePath = getEnv("SCOREBOARD_PEBBLE_PATH", c.Storage.PebblePath)
	c.Log.Level = getEnv("SCOREBOARD_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("SCOREBOARD_LOG_FILE", c.Log.File)

	if raw := getEnv("SCOREBOARD_MAX_DRIFT", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("SCOREBOARD_MAX_DRIFT: %w", err)
		}
		c.Policy.MaxDrift = d
	}
	if raw := getEnv("SCOREBOARD_TOP_LIMIT", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("SCOREBOARD_TOP_LIMIT: %w", err)
		}
		c.Policy.TopLimit = n
	}
	return nil
}

// Validate reports configuration that prevents the service from accepting traffic.
func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("SCORE_SECRET is required")
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePebble:
		if c.Storage.PebblePath == "" {
			return errors.New("storage.pebble_path is required for the pebble driver")
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Policy.MaxDrift <= 0 {
		return errors.New("policy.max_drift must be positive")
	}
	if c.Policy.TopLimit <= 0 {
		return errors.New("policy.top_limit must be positive")
	}
	return nil
}

func (c Config) policy() leaderboardsvc.Policy {
	return leaderboardsvc.Policy{MaxDrift: c.Policy.MaxDrift, TopLimit: c.Policy.TopLimit}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
