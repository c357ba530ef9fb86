package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding the config file,
// e.g. MEMORYMAP_DATABASE_PASSWORD or MEMORYMAP_JWT_SECRET.
const EnvPrefix = "MEMORYMAP"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	AWS       AWSConfig       `yaml:"aws" envconfig:"AWS"`
	JWT       JWTConfig       `yaml:"jwt" envconfig:"JWT"`
	Log       LogConfig       `yaml:"log" envconfig:"LOG"`
	Geocoding GeocodingConfig `yaml:"geocoding" envconfig:"GEOCODING"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Upload    UploadConfig    `yaml:"upload" envconfig:"UPLOAD"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port          int    `yaml:"port" envconfig:"PORT"`
	Host          string `yaml:"host" envconfig:"HOST"`
	AllowedOrigin string `yaml:"allowed_origin" envconfig:"ALLOWED_ORIGIN"`
	SecureCookies bool   `yaml:"secure_cookies" envconfig:"SECURE_COOKIES"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `yaml:"host" envconfig:"HOST"`
	Port        int    `yaml:"port" envconfig:"PORT"`
	User        string `yaml:"user" envconfig:"USER"`
	Password    string `yaml:"password" envconfig:"PASSWORD"`
	DBName      string `yaml:"dbname" envconfig:"DBNAME"`
	SSLMode     string `yaml:"sslmode" envconfig:"SSLMODE"`
	MaxConns    int32  `yaml:"max_conns" envconfig:"MAX_CONNS"`
	AutoMigrate bool   `yaml:"auto_migrate" envconfig:"AUTO_MIGRATE"`
}

// AWSConfig holds object storage configuration
type AWSConfig struct {
	Region    string `yaml:"region" envconfig:"REGION"`
	S3Bucket  string `yaml:"s3_bucket" envconfig:"S3_BUCKET"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
	// Endpoint points at an S3-compatible service instead of AWS
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
	// PublicBaseURL is prepended to object keys to build public URLs
	PublicBaseURL string `yaml:"public_base_url" envconfig:"PUBLIC_BASE_URL"`
	UsePathStyle  bool   `yaml:"use_path_style" envconfig:"USE_PATH_STYLE"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret" envconfig:"SECRET"`
	TTL    time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// GeocodingConfig holds reverse-geocoding configuration.
// An empty APIKey disables place enrichment.
type GeocodingConfig struct {
	APIKey   string        `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL  string        `yaml:"base_url" envconfig:"BASE_URL"`
	Language string        `yaml:"language" envconfig:"LANGUAGE"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
}

// RedisConfig holds redis configuration. An empty Addr disables the geocode cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// UploadConfig holds media upload limits
type UploadConfig struct {
	MaxBytes      int64 `yaml:"max_bytes" envconfig:"MAX_BYTES"`
	RatePerMinute int   `yaml:"rate_per_minute" envconfig:"RATE_PER_MINUTE"`
}

// Load reads configuration from a YAML file, applies environment overrides and defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = "*"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 30 * 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Geocoding.BaseURL == "" {
		c.Geocoding.BaseURL = "https://maps.googleapis.com"
	}
	if c.Geocoding.Timeout == 0 {
		c.Geocoding.Timeout = 5 * time.Second
	}
	if c.Geocoding.CacheTTL == 0 {
		c.Geocoding.CacheTTL = 7 * 24 * time.Hour
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 10 * 1024 * 1024
	}
	if c.Upload.RatePerMinute == 0 {
		c.Upload.RatePerMinute = 30
	}
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Upload.MaxBytes < 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	if c.Upload.RatePerMinute < 0 {
		errs = append(errs, errors.New("upload.rate_per_minute must be positive"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", c.MaxConns)
	}
	return dsn
}
