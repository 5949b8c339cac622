package relay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/globepath/go/internal/pathstore"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const defaultPort = "8000"

// Config holds configuration for the relay server
type Config struct {
	Port                string         `yaml:"port"`
	StaticDir           string         `yaml:"static_dir"`
	PathsDir            string         `yaml:"paths_dir"`
	HeartbeatIntervalMS int            `yaml:"heartbeat_interval_ms"`
	LogLevel            string         `yaml:"log_level"`
	Writer              WriterConfig   `yaml:"writer"`
	NATS                NATSConfig     `yaml:"nats"`
	Database            DatabaseConfig `yaml:"database"`
}

// WriterConfig sizes the persistence worker pool
type WriterConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// NATSConfig enables saved-path notifications when URL is set
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// DatabaseConfig holds Postgres connection settings for the path archive.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	writer := pathstore.DefaultWriterConfig()
	return Config{
		Port:                defaultPort,
		StaticDir:           "public",
		PathsDir:            "paths",
		HeartbeatIntervalMS: 1000,
		LogLevel:            "info",
		Writer: WriterConfig{
			Workers:   writer.Workers,
			QueueSize: writer.QueueSize,
		},
		NATS: NATSConfig{
			Subject: pathstore.DefaultNATSConfig().Subject,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "globepath",
			SSLMode:  "disable",
		},
	}
}

// LoadConfig layers defaults, the YAML file at path (skipped when missing)
// and environment variables, in that order.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return Config{}, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	if c.Port == "" {
		c.Port = defaultPort
	}
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.PathsDir = getEnv("PATHS_DIR", c.PathsDir)
	c.HeartbeatIntervalMS = getEnvAsInt("HEARTBEAT_INTERVAL_MS", c.HeartbeatIntervalMS)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Writer.Workers = getEnvAsInt("WRITER_WORKERS", c.Writer.Workers)
	c.Writer.QueueSize = getEnvAsInt("WRITER_QUEUE_SIZE", c.Writer.QueueSize)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("NATS_SUBJECT", c.NATS.Subject)

	c.Database.Enabled = getEnvAsBool("DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
}

// Validate rejects settings the relay cannot run with
func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	if c.HeartbeatIntervalMS <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %dms", c.HeartbeatIntervalMS)
	}
	if c.Writer.Workers <= 0 {
		return fmt.Errorf("writer workers must be positive, got %d", c.Writer.Workers)
	}
	if c.Writer.QueueSize <= 0 {
		return fmt.Errorf("writer queue size must be positive, got %d", c.Writer.QueueSize)
	}
	if c.PathsDir == "" {
		return fmt.Errorf("paths directory is required")
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// HeartbeatInterval converts the configured milliseconds.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// Level parses LogLevel, defaulting to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
