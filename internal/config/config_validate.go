// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateProviders,
		c.validateModeration,
		c.validateJobs,
		c.validateWorker,
		c.validateQueue,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be zero or positive")
	}
	return nil
}

// validateProviders checks provider URLs. Credentials are optional at load
// time; an adapter without credentials fails every call, which the pipeline
// treats as "attribute skipped".
func (c *Config) validateProviders() error {
	if err := validateHTTPURL(c.Perspective.URL, "PERSPECTIVE_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.Sightengine.URL, "SIGHTENGINE_URL"); err != nil {
		return err
	}
	if c.Perspective.Timeout <= 0 || c.Sightengine.Timeout <= 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	if c.Perspective.RateLimit < 0 || c.Sightengine.RateLimit < 0 {
		return fmt.Errorf("provider rate limits must be zero or positive")
	}
	return nil
}

func (c *Config) validateModeration() error {
	m := c.Moderation
	if m.TextMaxLength < 1 {
		return fmt.Errorf("MODERATION_TEXT_MAX_LENGTH must be positive")
	}
	if m.BreakerFailureRatio <= 0 || m.BreakerFailureRatio > 1 {
		return fmt.Errorf("MODERATION_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	return nil
}

var validStatusBackends = map[string]bool{
	"memory": true,
	"badger": true,
	"redis":  true,
}

func (c *Config) validateJobs() error {
	if !validStatusBackends[c.Jobs.StatusBackend] {
		return fmt.Errorf("JOB_STATUS_BACKEND must be one of: memory, badger, redis")
	}
	if c.Jobs.StatusKey == "" {
		return fmt.Errorf("JOB_STATUS_KEY is required")
	}
	if c.Jobs.LockTTL <= 0 || c.Jobs.ResultTTL <= 0 {
		return fmt.Errorf("JOB_LOCK_TTL and JOB_RESULT_TTL must be positive")
	}
	switch c.Jobs.StatusBackend {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when JOB_STATUS_BACKEND=redis")
		}
	case "badger":
		if c.Badger.Path == "" && !c.Badger.InMemory {
			return fmt.Errorf("BADGER_PATH is required when JOB_STATUS_BACKEND=badger")
		}
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.WakeURL != "" {
		if err := validateHTTPURL(c.Worker.WakeURL, "WORKER_WAKE_URL"); err != nil {
			return err
		}
	}
	if c.Worker.WakeAttempts < 1 {
		return fmt.Errorf("WORKER_WAKE_ATTEMPTS must be at least 1")
	}
	if c.Worker.WakeTimeout <= 0 {
		return fmt.Errorf("WORKER_WAKE_TIMEOUT must be positive")
	}
	if c.Worker.WakeBackoff < 0 {
		return fmt.Errorf("WORKER_WAKE_BACKOFF must be zero or positive")
	}
	if c.Worker.ListenPort < 1 || c.Worker.ListenPort > 65535 {
		return fmt.Errorf("WORKER_PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Topic == "" {
		return fmt.Errorf("QUEUE_TOPIC is required")
	}
	switch c.Queue.Backend {
	case "memory":
		if !c.Worker.Embedded {
			return fmt.Errorf("QUEUE_BACKEND=memory requires WORKER_EMBEDDED=true")
		}
		return nil
	case "nats":
		return c.validateNATS()
	default:
		return fmt.Errorf("QUEUE_BACKEND must be one of: memory, nats")
	}
}

func (c *Config) validateNATS() error {
	n := c.Queue.NATS
	if n.EmbeddedServer {
		if n.Port < 1 || n.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535")
		}
		if n.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
		return nil
	}
	if n.URL == "" {
		return fmt.Errorf("NATS_URL is required when QUEUE_BACKEND=nats")
	}
	if !strings.HasPrefix(n.URL, "nats://") && !strings.HasPrefix(n.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://")
	}
	if n.AckWait <= 0 {
		return fmt.Errorf("NATS_ACK_WAIT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" && c.IsProduction() {
			return fmt.Errorf("CORS_ORIGINS must not contain * in production")
		}
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func validateHTTPURL(raw, name string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
