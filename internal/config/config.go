// Package config loads quizflow configuration from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quizflow/internal/gateway"
	"quizflow/internal/wizard"
)

// Config holds all quizflow configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Wizard   wizard.Timings `yaml:"wizard"`
	Gateway  gateway.Config `yaml:"gateway"`
	Fallback FallbackConfig `yaml:"fallback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	URI string `yaml:"uri"`
	// ProgressTTL bounds how long live progress of an idle session stays cached
	ProgressTTL time.Duration `yaml:"progress_ttl"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	OpsUser    string        `yaml:"ops_user"`
	OpsPass    string        `yaml:"ops_password"`
	OpsTTL     time.Duration `yaml:"ops_ttl"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// CatalogConfig points at a directory of catalog YAML files. Empty means the built-in catalogs.
type CatalogConfig struct {
	Dir string `yaml:"dir"`
}

type FallbackConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a configuration that runs against local Mongo and Redis
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: 30 * time.Second,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "quizflow",
		},
		Redis: RedisConfig{
			URI:         "localhost:6379",
			ProgressTTL: 24 * time.Hour,
		},
		Auth: AuthConfig{
			JWTSecret:  "dev-secret-change-in-production",
			OpsUser:    "ops",
			OpsPass:    "ops",
			OpsTTL:     24 * time.Hour,
			SessionTTL: 24 * time.Hour,
		},
		Wizard: wizard.DefaultTimings(),
		Gateway: gateway.Config{
			BaseURL: "http://localhost:8080/api/quiz",
			Timeout: 10 * time.Second,
			Backoff: time.Second,
		},
		Fallback: FallbackConfig{Path: "data/fallback.db"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Redis.URI = getEnv("REDIS_URI", c.Redis.URI)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.OpsUser = getEnv("HOST_USERNAME", c.Auth.OpsUser)
	c.Auth.OpsPass = getEnv("HOST_PASSWORD", c.Auth.OpsPass)
	c.Gateway.BaseURL = getEnv("QUIZFLOW_API_BASE", c.Gateway.BaseURL)
	c.Fallback.Path = getEnv("QUIZFLOW_FALLBACK_DB", c.Fallback.Path)
	c.Logging.Level = getEnv("QUIZFLOW_LOG_LEVEL", c.Logging.Level)
	c.Catalog.Dir = getEnv("QUIZFLOW_CATALOG_DIR", c.Catalog.Dir)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
}

// RedisAddr strips an optional redis:// scheme
func (c *Config) RedisAddr() string {
	return strings.TrimPrefix(c.Redis.URI, "redis://")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
