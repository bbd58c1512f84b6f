package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. FINDASH_API_BASE_URL.
const EnvPrefix = "FINDASH"

// Config holds all application configuration
type Config struct {
	API      APIConfig
	Store    StoreConfig
	Auth     AuthConfig
	Server   ServerConfig
	Log      LogConfig
	GCS      GCSConfig
	BigQuery BigQueryConfig
	Gemini   GeminiConfig
	Notion   NotionConfig
	Jobs     JobsConfig
}

// APIConfig describes the remote finance backend.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	Burst     int
}

// StoreConfig holds shared data store settings
type StoreConfig struct {
	RefreshInterval time.Duration
}

// AuthConfig holds where credentials are persisted.
// When RedisAddr is set the credential slot lives in Redis instead of a local file.
type AuthConfig struct {
	CredentialsPath string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKeyPrefix  string
}

// ServerConfig holds dashboard HTTP server settings
type ServerConfig struct {
	Port         string
	APIKey       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// GCSConfig holds receipt image storage settings
type GCSConfig struct {
	Bucket string
	Prefix string
}

// BigQueryConfig holds metrics history settings
type BigQueryConfig struct {
	Enabled     bool
	ProjectID   string
	Dataset     string
	Table       string
	MinInterval time.Duration
}

// GeminiConfig holds receipt OCR model settings
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NotionConfig holds export settings
type NotionConfig struct {
	Token          string
	GoalsDB        string
	TransactionsDB string
}

// JobsConfig holds receipt scan queue settings
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with FINDASH_ prefix (e.g., FINDASH_API_BASE_URL)
// 2. the file at path, or config.toml in the working directory / ~/.config/findash
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "findash"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Load: reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		API: APIConfig{
			BaseURL:   v.GetString("api.base_url"),
			Timeout:   v.GetDuration("api.timeout"),
			RateLimit: v.GetFloat64("api.rate_limit"),
			Burst:     v.GetInt("api.burst"),
		},
		Store: StoreConfig{
			RefreshInterval: v.GetDuration("store.refresh_interval"),
		},
		Auth: AuthConfig{
			CredentialsPath: v.GetString("auth.credentials_path"),
			RedisAddr:       v.GetString("auth.redis_addr"),
			RedisPassword:   v.GetString("auth.redis_password"),
			RedisDB:         v.GetInt("auth.redis_db"),
			RedisKeyPrefix:  v.GetString("auth.redis_key_prefix"),
		},
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			APIKey:       v.GetString("server.api_key"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		GCS: GCSConfig{
			Bucket: v.GetString("gcs.bucket"),
			Prefix: v.GetString("gcs.prefix"),
		},
		BigQuery: BigQueryConfig{
			Enabled:     v.GetBool("bigquery.enabled"),
			ProjectID:   v.GetString("bigquery.project_id"),
			Dataset:     v.GetString("bigquery.dataset"),
			Table:       v.GetString("bigquery.table"),
			MinInterval: v.GetDuration("bigquery.min_interval"),
		},
		Gemini: GeminiConfig{
			APIKey: v.GetString("gemini.api_key"),
			Model:  v.GetString("gemini.model"),
		},
		Notion: NotionConfig{
			Token:          v.GetString("notion.token"),
			GoalsDB:        v.GetString("notion.goals_db"),
			TransactionsDB: v.GetString("notion.transactions_db"),
		},
		Jobs: JobsConfig{
			Workers:    v.GetInt("jobs.workers"),
			BufferSize: v.GetInt("jobs.buffer_size"),
			MaxRetries: v.GetInt("jobs.max_retries"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("Load: invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:5000"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 10 * time.Second
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = 5
	}
	if cfg.Store.RefreshInterval == 0 {
		cfg.Store.RefreshInterval = 30 * time.Second
	}
	if cfg.Auth.CredentialsPath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.Auth.CredentialsPath = filepath.Join(dir, "findash", "credentials.json")
		} else {
			cfg.Auth.CredentialsPath = ".findash-credentials.json"
		}
	}
	if cfg.Auth.RedisKeyPrefix == "" {
		cfg.Auth.RedisKeyPrefix = "findash:"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.GCS.Prefix == "" {
		cfg.GCS.Prefix = "receipts"
	}
	if cfg.BigQuery.Dataset == "" {
		cfg.BigQuery.Dataset = "finance_dashboard"
	}
	if cfg.BigQuery.Table == "" {
		cfg.BigQuery.Table = "metrics_history"
	}
	if cfg.BigQuery.MinInterval == 0 {
		cfg.BigQuery.MinInterval = time.Hour
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.5-flash"
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 5
	}
	if cfg.Jobs.BufferSize == 0 {
		cfg.Jobs.BufferSize = 100
	}
	if cfg.Jobs.MaxRetries == 0 {
		cfg.Jobs.MaxRetries = 3
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.Store.RefreshInterval < time.Second {
		return fmt.Errorf("store.refresh_interval must be at least 1s, got %s", c.Store.RefreshInterval)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.BigQuery.Enabled && c.BigQuery.ProjectID == "" {
		return fmt.Errorf("bigquery.project_id is required when bigquery.enabled is set")
	}
	if c.Jobs.Workers < 0 || c.Jobs.BufferSize < 0 {
		return fmt.Errorf("jobs.workers and jobs.buffer_size must not be negative")
	}
	return nil
}
