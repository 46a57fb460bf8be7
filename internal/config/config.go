package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Ledger store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Statement storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port            string `yaml:"port" env:"SERVER_PORT"`
		Mode            string `yaml:"mode" env:"SERVER_MODE"`
		ReadTimeout     string `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout    string `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout string `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Ledger struct {
		Store             string   `yaml:"store" env:"LEDGER_STORE"`
		MaxPaymentRetries int      `yaml:"max_payment_retries" env:"LEDGER_MAX_PAYMENT_RETRIES"`
		ReconcileInterval string   `yaml:"reconcile_interval" env:"LEDGER_RECONCILE_INTERVAL"`
		ReconcileOnStart  bool     `yaml:"reconcile_on_start" env:"LEDGER_RECONCILE_ON_START"`
		SeedDemoData      bool     `yaml:"seed_demo_data" env:"LEDGER_SEED_DEMO_DATA"`
		DemoStudents      []string `yaml:"demo_students" env:"LEDGER_DEMO_STUDENTS"`
	} `yaml:"ledger"`

	Redis struct {
		Enabled     bool   `yaml:"enabled" env:"REDIS_ENABLED"`
		Addr        string `yaml:"addr" env:"REDIS_ADDR"`
		Password    string `yaml:"password" env:"REDIS_PASSWORD"`
		DB          int    `yaml:"db" env:"REDIS_DB"`
		AuditStream string `yaml:"audit_stream" env:"REDIS_AUDIT_STREAM"`
		AuditMaxLen int64  `yaml:"audit_max_len" env:"REDIS_AUDIT_MAX_LEN"`
		LeaseTTL    string `yaml:"lease_ttl" env:"REDIS_LEASE_TTL"`
	} `yaml:"redis"`

	Storage struct {
		Enabled    bool   `yaml:"enabled" env:"STORAGE_ENABLED"`
		Backend    string `yaml:"backend" env:"STORAGE_BACKEND"`
		LocalPath  string `yaml:"local_path" env:"STORAGE_LOCAL_PATH"`
		BaseURL    string `yaml:"base_url" env:"STORAGE_BASE_URL"`
		Endpoint   string `yaml:"endpoint" env:"STORAGE_ENDPOINT"`
		AccessKey  string `yaml:"access_key" env:"STORAGE_ACCESS_KEY"`
		SecretKey  string `yaml:"secret_key" env:"STORAGE_SECRET_KEY"`
		Bucket     string `yaml:"bucket" env:"STORAGE_BUCKET"`
		Region     string `yaml:"region" env:"STORAGE_REGION"`
		Prefix     string `yaml:"prefix" env:"STORAGE_PREFIX"`
		UseSSL     bool   `yaml:"use_ssl" env:"STORAGE_USE_SSL"`
		PresignTTL string `yaml:"presign_ttl" env:"STORAGE_PRESIGN_TTL"`
	} `yaml:"storage"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load default config with sane defaults
	config := &Config{}
	setDefaults(config)

	// Try to read config file if it exists
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	// Server defaults
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.ReadTimeout = "10s"
	config.Server.WriteTimeout = "30s"
	config.Server.ShutdownTimeout = "10s"

	// Database defaults
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "bursar"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"

	// JWT defaults
	config.JWT.AccessTokenExpiration = "1h"
	config.JWT.Issuer = "bursar.app"

	// Logging defaults
	config.Logging.Level = "info"
	config.Logging.Format = "json"

	// Ledger defaults
	config.Ledger.Store = StorePostgres
	config.Ledger.MaxPaymentRetries = 3
	config.Ledger.ReconcileInterval = "1h"
	config.Ledger.ReconcileOnStart = true

	// Redis defaults
	config.Redis.Addr = "localhost:6379"
	config.Redis.AuditStream = "fee-audit"
	config.Redis.AuditMaxLen = 100000
	config.Redis.LeaseTTL = "5m"

	// Statement storage defaults
	config.Storage.Backend = StorageLocal
	config.Storage.LocalPath = "./statements"
	config.Storage.BaseURL = "/statements"
	config.Storage.Region = "us-east-1"
	config.Storage.PresignTTL = "15m"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	switch config.Ledger.Store {
	case StorePostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown ledger store %q", config.Ledger.Store)
	}

	if config.Ledger.MaxPaymentRetries < 0 {
		return fmt.Errorf("ledger max payment retries must not be negative")
	}

	durations := map[string]string{
		"JWT access token expiration": config.JWT.AccessTokenExpiration,
		"ledger reconcile interval":   config.Ledger.ReconcileInterval,
		"server shutdown timeout":     config.Server.ShutdownTimeout,
		"redis lease ttl":             config.Redis.LeaseTTL,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if config.Storage.Enabled {
		switch strings.ToLower(config.Storage.Backend) {
		case StorageLocal:
			if config.Storage.LocalPath == "" {
				return fmt.Errorf("storage local path is required")
			}
		case StorageS3:
			if config.Storage.Endpoint == "" || config.Storage.Bucket == "" {
				return fmt.Errorf("storage endpoint and bucket are required for the s3 backend")
			}
		default:
			return fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
		}
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Server.Mode) == "production"
}
