// Package config loads server settings from an optional YAML file with
// environment variables taking precedence, so containers can override any
// field without shipping a file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string  `yaml:"port"`
	DatabaseURL    string  `yaml:"databaseUrl"`
	RedisURL       string  `yaml:"redisUrl"`
	AuthMode       string  `yaml:"authMode"`
	RateRPS        float64 `yaml:"rateRps"`
	RateBurst      int     `yaml:"rateBurst"`
	StoreTimeoutMs int     `yaml:"storeTimeoutMs"`
	MigrationsDir  string  `yaml:"migrationsDir"`

	// derived from StoreTimeoutMs; yaml.v3 cannot decode "2s" into a
	// time.Duration, so the file and env both speak milliseconds
	StoreTimeout time.Duration `yaml:"-"`
}

// Load reads path (if non-empty and present), then applies env overrides and
// defaults. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Config{
		Port:         "8080",
		AuthMode:     "dev",
		RateRPS:      1,
		RateBurst:    5,
		StoreTimeout: 2 * time.Second,
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("AUTH_MODE"); v != "" {
		cfg.AuthMode = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateBurst = n
		}
	}
	if v := os.Getenv("STORE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StoreTimeoutMs = n
		}
	}
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}
	if cfg.StoreTimeoutMs > 0 {
		cfg.StoreTimeout = time.Duration(cfg.StoreTimeoutMs) * time.Millisecond
	}
	return cfg, nil
}
