package main

import (
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-inclusionfilter/pkg/microservice"
)

// Config holds everything the sample selector binary needs.
type Config struct {
	microservice.BaseConfig

	NumWorkers      int
	Delay           time.Duration
	RatePerSecond   float64
	CacheMaxEntries int
	RedisAddr       string
	RedisTTL        time.Duration
	BoltPath        string
}

// LoadConfigFromEnv builds a Config from defaults overridden by SELECTOR_* variables.
// Unparseable values keep their defaults.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		BaseConfig: microservice.BaseConfig{
			LogLevel:    "info",
			HTTPPort:    ":8080",
			ServiceName: "sample-selector",
		},
		NumWorkers: 5,
		Delay:      3 * time.Second,
		RedisTTL:   time.Hour,
	}

	if v := os.Getenv("SELECTOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SELECTOR_HTTP_PORT"); v != "" {
		cfg.HTTPPort = v
	}
	if v := os.Getenv("SELECTOR_WORKERS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.NumWorkers = val
		}
	}
	if v := os.Getenv("SELECTOR_DELAY"); v != "" {
		if val, err := time.ParseDuration(v); err == nil && val >= 0 {
			cfg.Delay = val
		}
	}
	if v := os.Getenv("SELECTOR_RATE_PER_SECOND"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 {
			cfg.RatePerSecond = val
		}
	}
	if v := os.Getenv("SELECTOR_CACHE_MAX_ENTRIES"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.CacheMaxEntries = val
		}
	}
	cfg.RedisAddr = os.Getenv("SELECTOR_REDIS_ADDR")
	if v := os.Getenv("SELECTOR_REDIS_TTL"); v != "" {
		if val, err := time.ParseDuration(v); err == nil {
			cfg.RedisTTL = val
		}
	}
	cfg.BoltPath = os.Getenv("SELECTOR_BOLT_PATH")
	return cfg
}
