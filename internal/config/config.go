package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Sync      SyncConfig      `yaml:"sync"`
	Watermark WatermarkConfig `yaml:"watermark"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Server    ServerConfig    `yaml:"server"`
}

// SourceConfig holds the remote quote-service connection settings.
type SourceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// SyncConfig holds sync scheduling settings. A zero Interval disables the
// timer trigger; Push disabled means the bridge only syncs on timer or
// manual triggers.
type SyncConfig struct {
	Interval              time.Duration `yaml:"interval"`
	Push                  bool          `yaml:"push"`
	ReconnectInitialDelay time.Duration `yaml:"reconnect_initial_delay"`
	ReconnectMaxDelay     time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMultiplier   float64       `yaml:"reconnect_multiplier"`
}

// WatermarkConfig holds watermark persistence settings.
type WatermarkConfig struct {
	Type      string `yaml:"type"` // "memory", "file", "dynamodb"
	Path      string `yaml:"path"` // For file store
	Region    string `yaml:"region"`
	TableName string `yaml:"table_name"`
	Endpoint  string `yaml:"endpoint"` // Custom endpoint for local testing
	Key       string `yaml:"key"`      // Item key within the shared table
}

// LedgerConfig holds downstream ledger settings.
type LedgerConfig struct {
	Type        string `yaml:"type"` // "memory", "postgresql", "mongodb"
	PostgresURI string `yaml:"postgres_uri"`
	MongoDBURI  string `yaml:"mongodb_uri"`
	Database    string `yaml:"database"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load loads configuration from an optional YAML file (QS_CONFIG_FILE) with
// environment variables taking precedence, then validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Source: SourceConfig{
			Timeout:    30 * time.Second,
			RetryCount: 3,
		},
		Sync: SyncConfig{
			Interval:              5 * time.Minute,
			ReconnectInitialDelay: time.Second,
			ReconnectMaxDelay:     time.Minute,
			ReconnectMultiplier:   2,
		},
		Watermark: WatermarkConfig{
			Type:      "memory",
			Path:      "watermark",
			Region:    "us-west-2",
			TableName: "sync_watermarks",
			Key:       "paid_quotes",
		},
		Ledger: LedgerConfig{
			Type:     "memory",
			Database: "ledger",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}

	if path := os.Getenv("QS_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Source.BaseURL = getEnv("SOURCE_BASE_URL", cfg.Source.BaseURL)
	cfg.Source.APIKey = getEnv("SOURCE_API_KEY", cfg.Source.APIKey)
	cfg.Source.Timeout = getEnvDuration("SOURCE_TIMEOUT", cfg.Source.Timeout)
	cfg.Source.RetryCount = getEnvInt("SOURCE_RETRY_COUNT", cfg.Source.RetryCount)

	cfg.Sync.Interval = getEnvDuration("SYNC_INTERVAL", cfg.Sync.Interval)
	cfg.Sync.Push = getEnvBool("SYNC_PUSH", cfg.Sync.Push)

	cfg.Watermark.Type = getEnv("WATERMARK_STORE", cfg.Watermark.Type)
	cfg.Watermark.Path = getEnv("WATERMARK_PATH", cfg.Watermark.Path)
	cfg.Watermark.Region = getEnv("AWS_REGION", cfg.Watermark.Region)
	cfg.Watermark.TableName = getEnv("WATERMARK_TABLE", cfg.Watermark.TableName)
	cfg.Watermark.Endpoint = getEnv("DYNAMODB_ENDPOINT", cfg.Watermark.Endpoint)

	cfg.Ledger.Type = getEnv("LEDGER_TYPE", cfg.Ledger.Type)
	cfg.Ledger.PostgresURI = getEnv("POSTGRES_URI", cfg.Ledger.PostgresURI)
	cfg.Ledger.MongoDBURI = getEnv("MONGODB_URI", cfg.Ledger.MongoDBURI)
	cfg.Ledger.Database = getEnv("LEDGER_DATABASE", cfg.Ledger.Database)

	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configuration the bridge cannot start with. A malformed
// source base URL is fatal here, before anything is wired up.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source base URL is required")
	}
	u, err := url.ParseRequestURI(c.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid source base URL %q: %w", c.Source.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid source base URL %q: expected http(s)://host", c.Source.BaseURL)
	}
	if c.Sync.ReconnectMultiplier < 1 {
		return fmt.Errorf("reconnect multiplier must be >= 1, got %v", c.Sync.ReconnectMultiplier)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
