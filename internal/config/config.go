// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	LogLevel        string
	LogFile         string
	Store           StoreConfig
	Assistant       AssistantConfig
	SessionIdleTTL  time.Duration
	ConversationLog ConversationLogConfig
	Telemetry       TelemetryConfig
}

// StoreConfig selects the session store driver.
type StoreConfig struct {
	Driver        string // sqlite, redis or memory
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// AssistantConfig configures the assistant backend client.
type AssistantConfig struct {
	Transport   string // http or grpc
	BaseURL     string
	GRPCAddr    string
	Timeout     time.Duration
	AuthEnabled bool
	AuthToken   string
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled         bool
	Dir             string
	GlobalEnabled   bool
	GlobalPath      string
	GlobalMaxSizeMB int
	QueueSize       int
}

// TelemetryConfig controls OpenTelemetry file exports.
type TelemetryConfig struct {
	TracePath   string
	MetricsPath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DBPath:        getEnv("DB_PATH", "./data/techassist.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Assistant: AssistantConfig{
			Transport:   strings.ToLower(getEnv("ASSISTANT_TRANSPORT", "http")),
			BaseURL:     getEnv("ASSISTANT_BASE_URL", "http://localhost:6500"),
			GRPCAddr:    getEnv("ASSISTANT_GRPC_ADDR", "localhost:50051"),
			Timeout:     getEnvDuration("ASSISTANT_TIMEOUT", 60*time.Second),
			AuthEnabled: getEnvBool("ASSISTANT_AUTH_ENABLED", false),
			AuthToken:   getEnv("ASSISTANT_AUTH_TOKEN", ""),
		},
		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 60*time.Minute),
		ConversationLog: ConversationLogConfig{
			Enabled:         getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:             getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled:   getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:      getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			GlobalMaxSizeMB: getEnvInt("CONVERSATION_LOG_GLOBAL_MAX_SIZE_MB", 50),
			QueueSize:       queueSize,
		},
		Telemetry: TelemetryConfig{
			TracePath:   getEnv("TRACE_LOG_PATH", ""),
			MetricsPath: getEnv("METRICS_LOG_PATH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be sqlite, redis or memory, got %q", c.Store.Driver)
	}
	switch c.Assistant.Transport {
	case "http":
		if c.Assistant.BaseURL == "" {
			return fmt.Errorf("ASSISTANT_BASE_URL cannot be empty")
		}
	case "grpc":
		if c.Assistant.GRPCAddr == "" {
			return fmt.Errorf("ASSISTANT_GRPC_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("ASSISTANT_TRANSPORT must be http or grpc, got %q", c.Assistant.Transport)
	}
	if c.Assistant.Timeout <= 0 {
		return fmt.Errorf("ASSISTANT_TIMEOUT must be > 0")
	}
	if c.Assistant.AuthEnabled && c.Assistant.AuthToken == "" {
		return fmt.Errorf("ASSISTANT_AUTH_TOKEN is required when ASSISTANT_AUTH_ENABLED is set")
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL cannot be negative")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
