// Package config provides configuration management for FlexConvert.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flexconvert/flexconvert/internal/domain"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Sharing    SharingConfig    `mapstructure:"sharing"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Client     ClientConfig     `mapstructure:"client"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`
	JournalMode     string `mapstructure:"journal_mode"`
	BusyTimeout     int    `mapstructure:"busy_timeout"`
	CacheSize       int    `mapstructure:"cache_size"`
	SynchronousMode string `mapstructure:"synchronous_mode"`
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings.
// Redis is only used to coordinate the cleanup sweep across instances.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds object storage settings for shared files.
type StorageConfig struct {
	// Driver is "s3" for an S3-compatible bucket or "memory" for local development.
	Driver string `mapstructure:"driver"`

	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// SharingConfig holds share creation limits.
type SharingConfig struct {
	// URLExpiry is the validity window of pre-signed upload/download URLs.
	URLExpiry time.Duration `mapstructure:"url_expiry"`

	// MaxFileSize is the largest file a file share may declare.
	MaxFileSize int64 `mapstructure:"max_file_size"`

	// MaxConfigSize is the largest embedded configuration JSON, in bytes.
	MaxConfigSize int `mapstructure:"max_config_size"`

	// MaxExpiry bounds the requested share lifetime.
	MaxExpiry time.Duration `mapstructure:"max_expiry"`

	// DefaultPageSize and MaxPageSize bound list pagination.
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// AnalyticsConfig holds analytics settings.
type AnalyticsConfig struct {
	// StatsCacheTTL is how long aggregate stats are served from memory. 0 disables caching.
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl"`

	// MaxDays bounds the stats window.
	MaxDays int `mapstructure:"max_days"`
}

// CleanupConfig holds settings for the expired-share sweep.
type CleanupConfig struct {
	// Enabled determines if the sweep runs on a schedule.
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run the sweep.
	Interval time.Duration `mapstructure:"interval"`

	// BatchSize is the maximum number of shares to process per batch.
	BatchSize int `mapstructure:"batch_size"`

	// DryRun logs what would be deleted without actually deleting.
	DryRun bool `mapstructure:"dry_run"`
}

// AuthConfig holds admin authentication settings.
type AuthConfig struct {
	// AdminKeyHash is the bcrypt hash of the key accepted on /admin routes.
	// When empty, admin routes are disabled.
	AdminKeyHash string `mapstructure:"admin_key_hash"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the port for the metrics HTTP server.
	Port int `mapstructure:"port"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// ProcessingConfig holds settings for the local processing pipeline.
type ProcessingConfig struct {
	// MaxPDFSize is the decode ceiling for PDF inputs.
	MaxPDFSize int64 `mapstructure:"max_pdf_size"`

	// Workers bounds per-file parallelism. 1 processes files sequentially.
	Workers int `mapstructure:"workers"`

	// DownloadDelay separates consecutive output deliveries.
	DownloadDelay time.Duration `mapstructure:"download_delay"`

	// OutputDir is where the CLI writes results.
	OutputDir string `mapstructure:"output_dir"`

	// PreferencesPath is the preference file location.
	PreferencesPath string `mapstructure:"preferences_path"`
}

// ClientConfig holds settings the CLI uses to reach the backend.
type ClientConfig struct {
	// BaseURL of the backend. Empty disables usage reporting and sharing.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with FLEXCONVERT_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FLEXCONVERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/flexconvert")
	}

	// Config file is optional; defaults and env vars may be enough.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 1024*1024) // 1MB, bodies are JSON only

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flexconvert")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "flexconvert")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.path", "./data/flexconvert.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.cache_size", -2000)
	v.SetDefault("database.synchronous_mode", "NORMAL")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Storage defaults
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "flexconvert-shares")
	v.SetDefault("storage.use_path_style", true)

	// Sharing defaults
	v.SetDefault("sharing.url_expiry", 1*time.Hour)
	v.SetDefault("sharing.max_file_size", 100*1024*1024) // 100MB
	v.SetDefault("sharing.max_config_size", 64*1024)
	v.SetDefault("sharing.max_expiry", 30*24*time.Hour)
	v.SetDefault("sharing.default_page_size", 20)
	v.SetDefault("sharing.max_page_size", 100)

	// Analytics defaults
	v.SetDefault("analytics.stats_cache_ttl", 30*time.Second)
	v.SetDefault("analytics.max_days", 365)

	// Cleanup defaults
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.interval", 6*time.Hour)
	v.SetDefault("cleanup.batch_size", 500)
	v.SetDefault("cleanup.dry_run", false)

	// Auth defaults
	v.SetDefault("auth.admin_key_hash", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")

	// Processing defaults
	v.SetDefault("processing.max_pdf_size", 100*1024*1024)
	v.SetDefault("processing.workers", 4)
	v.SetDefault("processing.download_delay", 100*time.Millisecond)
	v.SetDefault("processing.output_dir", ".")
	v.SetDefault("processing.preferences_path", "")

	// Client defaults
	v.SetDefault("client.base_url", "")
	v.SetDefault("client.timeout", 30*time.Second)
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	} else if c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite driver")
	}

	if c.Storage.Driver != "s3" && c.Storage.Driver != "memory" {
		return fmt.Errorf("storage.driver must be 's3' or 'memory'")
	}
	if c.Storage.Driver == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}

	if c.Sharing.URLExpiry <= 0 {
		return fmt.Errorf("sharing.url_expiry must be positive")
	}
	if c.Sharing.MaxExpiry < domain.MinShareExpiry || c.Sharing.MaxExpiry > domain.MaxShareExpiry {
		return fmt.Errorf("sharing.max_expiry must be between %s and %s", domain.MinShareExpiry, domain.MaxShareExpiry)
	}
	if c.Sharing.MaxFileSize <= 0 {
		return fmt.Errorf("sharing.max_file_size must be positive")
	}
	if c.Sharing.DefaultPageSize < 1 || c.Sharing.DefaultPageSize > c.Sharing.MaxPageSize {
		return fmt.Errorf("sharing.default_page_size must be between 1 and sharing.max_page_size")
	}

	if c.Analytics.MaxDays < 1 {
		return fmt.Errorf("analytics.max_days must be at least 1")
	}

	if c.Cleanup.Enabled && c.Cleanup.Interval <= 0 {
		return fmt.Errorf("cleanup.interval must be positive when cleanup is enabled")
	}
	if c.Cleanup.BatchSize < 1 {
		return fmt.Errorf("cleanup.batch_size must be at least 1")
	}

	if c.Processing.Workers < 1 {
		return fmt.Errorf("processing.workers must be at least 1")
	}
	if c.Processing.MaxPDFSize <= 0 {
		return fmt.Errorf("processing.max_pdf_size must be positive")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
