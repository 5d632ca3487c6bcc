package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is the public BART legacy API endpoint
	DefaultBaseURL = "https://api.bart.gov/api"
	// DefaultAPIKey is BART's shared public evaluation key
	DefaultAPIKey = "MW9S-E7SL-26DU-VV8V"

	envPrefix = "BARTETL_"
)

// Config holds all configuration options for the ETL pipeline
type Config struct {
	// Upstream API settings
	API APIConfig `yaml:"api" json:"api"`

	// Cycle scheduling and checkpointing
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`

	// Storage backend selection
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Client-side rate limiting against the upstream API
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Per-request retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// HTTP trigger server
	Server ServerConfig `yaml:"server" json:"server"`
}

// APIConfig holds upstream API settings
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	APIKey    string        `yaml:"api_key" json:"api_key" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// SchedulerConfig holds cycle scheduling configuration
type SchedulerConfig struct {
	Interval           time.Duration `yaml:"interval" json:"interval" validate:"gt=0"`
	CheckpointPath     string        `yaml:"checkpoint_path" json:"checkpoint_path" validate:"required"`
	StationTimeout     time.Duration `yaml:"station_timeout" json:"station_timeout" validate:"gt=0"`
	StationRefreshHour int           `yaml:"station_refresh_hour" json:"station_refresh_hour" validate:"min=0,max=23"`
	Lock               bool          `yaml:"lock" json:"lock"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Backend     string        `yaml:"backend" json:"backend" validate:"oneof=sqlite postgres"`
	SQLitePath  string        `yaml:"sqlite_path" json:"sqlite_path" validate:"required_if=Backend sqlite"`
	PostgresDSN string        `yaml:"postgres_dsn" json:"postgres_dsn" validate:"required_if=Backend postgres"`
	Retention   time.Duration `yaml:"retention" json:"retention" validate:"gte=0"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" json:"burst" validate:"min=1"`
}

// RetryConfig holds the retry policy for upstream requests
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay" validate:"gtefield=BaseDelay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier" validate:"gte=1"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
}

// ServerConfig holds the HTTP trigger server configuration
type ServerConfig struct {
	Addr           string   `yaml:"addr" json:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		API: APIConfig{
			BaseURL:   DefaultBaseURL,
			APIKey:    DefaultAPIKey,
			Timeout:   10 * time.Second,
			UserAgent: "bartetl/1.0",
		},
		Scheduler: SchedulerConfig{
			Interval:           time.Minute,
			CheckpointPath:     filepath.Join(dataDir, "etl_checkpoint.json"),
			StationTimeout:     30 * time.Second,
			StationRefreshHour: 0,
			Lock:               true,
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(dataDir, "bart.db"),
			Retention:  30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			Multiplier:  2.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// DataDir returns the platform data directory for checkpoints and the
// embedded database. It does not create the directory.
func DataDir() string {
	if dir := os.Getenv(envPrefix + "DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "bartetl")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "bartetl")
		}
		return filepath.Join(home, "bartetl")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "bartetl")
		}
		return filepath.Join(home, ".local", "share", "bartetl")
	}
}

// LoadFromEnv loads configuration from BARTETL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("API_KEY", &c.API.APIKey)
	str("API_BASE_URL", &c.API.BaseURL)
	dur("API_TIMEOUT", &c.API.Timeout)

	dur("INTERVAL", &c.Scheduler.Interval)
	str("CHECKPOINT_PATH", &c.Scheduler.CheckpointPath)
	dur("STATION_TIMEOUT", &c.Scheduler.StationTimeout)
	integer("STATION_REFRESH_HOUR", &c.Scheduler.StationRefreshHour)

	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	if c.Storage.PostgresDSN == "" {
		c.Storage.PostgresDSN = os.Getenv("DATABASE_URL")
	}
	dur("RETENTION", &c.Storage.Retention)

	integer("MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	integer("RATE_LIMIT_BURST", &c.RateLimit.Burst)
	if v := os.Getenv(envPrefix + "REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_SECOND: %w", envPrefix, err))
		} else {
			c.RateLimit.RequestsPerSecond = f
		}
	}

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	str("LOG_FORMAT", &c.Logging.Format)

	str("SERVER_ADDR", &c.Server.Addr)
	if v := os.Getenv(envPrefix + "ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in the standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".bartetl.yaml",
		".bartetl.yml",
		filepath.Join(home, ".config", "bartetl", "config.yaml"),
		filepath.Join(home, ".config", "bartetl", "config.yml"),
		filepath.Join(home, ".bartetl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}

// fieldError renders a validator failure with the config key path
func fieldError(fe validator.FieldError) error {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", key)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "url":
		return fmt.Errorf("%s must be a valid URL", key)
	default:
		return fmt.Errorf("%s failed %s=%s (value %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	cp := *c
	cp.API.APIKey = Mask(c.API.APIKey)
	if c.Storage.PostgresDSN != "" {
		cp.Storage.PostgresDSN = Mask(c.Storage.PostgresDSN)
	}
	cp.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return &cp
}

// Mask hides all but the first and last 4 characters of a secret
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values are ignored so unset flags never override other sources.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.API.APIKey = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := flags["interval"].(time.Duration); ok && v > 0 {
		c.Scheduler.Interval = v
	}
	if v, ok := flags["checkpoint"].(string); ok && v != "" {
		c.Scheduler.CheckpointPath = v
	}
	if v, ok := flags["storage"].(string); ok && v != "" {
		c.Storage.Backend = v
	}
	if v, ok := flags["sqlite-path"].(string); ok && v != "" {
		c.Storage.SQLitePath = v
	}
	if v, ok := flags["postgres-dsn"].(string); ok && v != "" {
		c.Storage.PostgresDSN = v
	}
	if v, ok := flags["retention"].(time.Duration); ok && v > 0 {
		c.Storage.Retention = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.Server.Addr = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are not an error
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".bartetl.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
