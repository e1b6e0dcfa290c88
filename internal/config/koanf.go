// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mangaguard/config.yaml",
	"/etc/mangaguard/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3901,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/mangaguard.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Perspective: PerspectiveConfig{
			URL:       "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze",
			Timeout:   10 * time.Second,
			RateLimit: 1, // default Perspective quota is 1 QPS
			Burst:     1,
		},
		Sightengine: SightengineConfig{
			URL:       "https://api.sightengine.com/1.0/check.json",
			Timeout:   15 * time.Second,
			RateLimit: 0,
			Burst:     1,
		},
		Moderation: ModerationConfig{
			TextMaxLength:         5000,
			BreakerMinRequests:    5,
			BreakerFailureRatio:   0.6,
			BreakerInterval:       time.Minute,
			BreakerTimeout:        2 * time.Minute,
			BreakerHalfOpenMaxReq: 1,
		},
		Jobs: JobsConfig{
			StatusBackend: "memory",
			StatusKey:     "moderation_status",
			LockTTL:       time.Hour,
			ResultTTL:     5 * time.Minute,
		},
		Worker: WorkerConfig{
			Embedded:     true,
			WakeURL:      "",
			WakeAttempts: 3,
			WakeTimeout:  9 * time.Second,
			WakeBackoff:  2 * time.Second,
			ListenHost:   "0.0.0.0",
			ListenPort:   3902,
		},
		Queue: QueueConfig{
			Backend: "memory",
			Topic:   "moderation_runs",
			NATS: NATSConfig{
				URL:            "nats://127.0.0.1:4222",
				EmbeddedServer: false,
				Host:           "127.0.0.1",
				Port:           4222,
				StoreDir:       "/data/nats",
				QueueGroup:     "moderation-workers",
				DurableName:    "moderation-worker",
				AckWait:        30 * time.Second,
				MaxReconnects:  -1,
				ReconnectWait:  2 * time.Second,
			},
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
			DB:   0,
		},
		Badger: BadgerConfig{
			Path:     "/data/status",
			InMemory: false,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
	}
}

// Defaults returns the built-in configuration without reading any source.
func Defaults() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration in three layers:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables
//
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Providers
	"perspective_api_key":    "perspective.api_key",
	"perspective_url":        "perspective.url",
	"perspective_timeout":    "perspective.timeout",
	"perspective_rate_limit": "perspective.rate_limit",
	"perspective_burst":      "perspective.burst",
	"sightengine_user":       "sightengine.api_user",
	"sightengine_secret":     "sightengine.api_secret",
	"sightengine_url":        "sightengine.url",
	"sightengine_timeout":    "sightengine.timeout",
	"sightengine_rate_limit": "sightengine.rate_limit",
	"sightengine_burst":      "sightengine.burst",

	// Moderation tuning
	"moderation_text_max_length":       "moderation.text_max_length",
	"moderation_breaker_min_requests":  "moderation.breaker_min_requests",
	"moderation_breaker_failure_ratio": "moderation.breaker_failure_ratio",
	"moderation_breaker_interval":      "moderation.breaker_interval",
	"moderation_breaker_timeout":       "moderation.breaker_timeout",

	// Jobs
	"job_status_backend": "jobs.status_backend",
	"job_status_key":     "jobs.status_key",
	"job_lock_ttl":       "jobs.lock_ttl",
	"job_result_ttl":     "jobs.result_ttl",

	// Worker
	"worker_embedded":      "worker.embedded",
	"worker_wake_url":      "worker.wake_url",
	"worker_wake_attempts": "worker.wake_attempts",
	"worker_wake_timeout":  "worker.wake_timeout",
	"worker_wake_backoff":  "worker.wake_backoff",
	"worker_host":          "worker.listen_host",
	"worker_port":          "worker.listen_port",

	// Queue
	"queue_backend":         "queue.backend",
	"queue_topic":           "queue.topic",
	"nats_url":              "queue.nats.url",
	"nats_embedded":         "queue.nats.embedded_server",
	"nats_host":             "queue.nats.host",
	"nats_port":             "queue.nats.port",
	"nats_store_dir":        "queue.nats.store_dir",
	"nats_queue_group":      "queue.nats.queue_group",
	"nats_durable_name":     "queue.nats.durable_name",
	"nats_ack_wait":         "queue.nats.ack_wait",
	"nats_max_reconnects":   "queue.nats.max_reconnects",
	"nats_reconnect_wait":   "queue.nats.reconnect_wait",
	"redis_addr":            "redis.addr",
	"redis_password":        "redis.password",
	"redis_db":              "redis.db",
	"badger_path":           "badger.path",
	"badger_in_memory":      "badger.in_memory",
	"cors_origins":          "security.cors_origins",
	"rate_limit_requests":   "security.rate_limit_requests",
	"rate_limit_window":     "security.rate_limit_window",
	"disable_rate_limiting": "security.rate_limit_disabled",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are dropped so unrelated environment does not leak
// into the configuration.
//
//   - PERSPECTIVE_API_KEY -> perspective.api_key
//   - WORKER_WAKE_URL -> worker.wake_url
//   - NATS_URL -> queue.nats.url
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
