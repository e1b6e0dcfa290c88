// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package config loads Mangaguard configuration with Koanf v2.
//
// Sources, lowest to highest priority:
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, config.yaml, /etc/mangaguard/config.yaml)
//  3. Environment variables (see envTransformFunc for the mapping)
//
// The same Config is used by both binaries: cmd/server reads the server,
// security, jobs and queue sections; cmd/worker additionally reads the
// provider and worker sections.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Logging     LoggingConfig     `koanf:"logging"`
	Perspective PerspectiveConfig `koanf:"perspective"`
	Sightengine SightengineConfig `koanf:"sightengine"`
	Moderation  ModerationConfig  `koanf:"moderation"`
	Jobs        JobsConfig        `koanf:"jobs"`
	Worker      WorkerConfig      `koanf:"worker"`
	Queue       QueueConfig       `koanf:"queue"`
	Redis       RedisConfig       `koanf:"redis"`
	Badger      BadgerConfig      `koanf:"badger"`
	Security    SecurityConfig    `koanf:"security"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// PerspectiveConfig configures the text-toxicity provider.
type PerspectiveConfig struct {
	APIKey    string        `koanf:"api_key"`
	URL       string        `koanf:"url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `koanf:"burst"`
}

// SightengineConfig configures the image-safety provider.
type SightengineConfig struct {
	APIUser   string        `koanf:"api_user"`
	APISecret string        `koanf:"api_secret"`
	URL       string        `koanf:"url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
}

// ModerationConfig holds scoring and circuit breaker tuning shared by both adapters.
type ModerationConfig struct {
	TextMaxLength         int           `koanf:"text_max_length"`
	BreakerMinRequests    uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio   float64       `koanf:"breaker_failure_ratio"`
	BreakerInterval       time.Duration `koanf:"breaker_interval"`
	BreakerTimeout        time.Duration `koanf:"breaker_timeout"`
	BreakerHalfOpenMaxReq uint32        `koanf:"breaker_half_open_max_requests"`
}

// JobsConfig configures the moderation job status machine.
type JobsConfig struct {
	StatusBackend string        `koanf:"status_backend"` // memory, badger, redis
	StatusKey     string        `koanf:"status_key"`
	LockTTL       time.Duration `koanf:"lock_ttl"`
	ResultTTL     time.Duration `koanf:"result_ttl"`
}

// WorkerConfig configures how the server reaches the worker and how the
// worker exposes its wake probe.
type WorkerConfig struct {
	Embedded     bool          `koanf:"embedded"` // run the queue consumer inside cmd/server
	WakeURL      string        `koanf:"wake_url"` // empty = worker always reachable
	WakeAttempts int           `koanf:"wake_attempts"`
	WakeTimeout  time.Duration `koanf:"wake_timeout"`
	WakeBackoff  time.Duration `koanf:"wake_backoff"`
	ListenHost   string        `koanf:"listen_host"`
	ListenPort   int           `koanf:"listen_port"`
}

// QueueConfig configures the job queue transport.
type QueueConfig struct {
	Backend string     `koanf:"backend"` // memory, nats
	Topic   string     `koanf:"topic"`
	NATS    NATSConfig `koanf:"nats"`
}

// NATSConfig holds NATS JetStream settings for the queue.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	StoreDir       string        `koanf:"store_dir"`
	QueueGroup     string        `koanf:"queue_group"`
	DurableName    string        `koanf:"durable_name"`
	AckWait        time.Duration `koanf:"ack_wait"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// RedisConfig configures the redis status backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// BadgerConfig configures the badger status backend.
type BadgerConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// SecurityConfig holds CORS and rate limiting for the HTTP surface.
// Authentication is provided by the fronting admin surface.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Load reads configuration from defaults, file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
