// Package config loads the egg configuration from egg.yml, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvDevelopment is the default environment. Only it may run without a
// configured JWT secret.
const EnvDevelopment = "development"

// devSecret signs tokens in development when no secret is configured
const devSecret = "egg-development-secret"

// Config represents the egg configuration
type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Frontend  FrontendConfig  `mapstructure:"frontend"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	PublicURL       string        `mapstructure:"public_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TimeZone        string        `mapstructure:"time_zone"`
	// PprofAddr, when set, serves pprof on a second, private listener
	PprofAddr string `mapstructure:"pprof_addr"`
	// TrustedProxies are the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers name the client
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig points at the shared Redis. An empty URL keeps tokens,
// OAuth states and rate limits in process memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig configures access tokens
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// GitHubConfig holds the GitHub OAuth application
type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// FrontendConfig locates the single page app
type FrontendConfig struct {
	Origin string `mapstructure:"origin"`
}

// StorageConfig configures uploaded images
type StorageConfig struct {
	Dir            string `mapstructure:"dir"`
	BucketName     string `mapstructure:"bucket_name"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// RateLimitConfig sets per-IP request budgets. Zero disables a limit.
type RateLimitConfig struct {
	RequestsPerMinute     int `mapstructure:"requests_per_minute"`
	AuthRequestsPerMinute int `mapstructure:"auth_requests_per_minute"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// JobsConfig schedules background jobs
type JobsConfig struct {
	BlobGCSchedule string        `mapstructure:"blob_gc_schedule"`
	BlobGCGrace    time.Duration `mapstructure:"blob_gc_grace"`
}

// legacyEnv maps configuration keys to the variable names deployments
// already set
var legacyEnv = map[string]string{
	"database.url":         "DATABASE_URL",
	"redis.url":            "REDIS_URL",
	"frontend.origin":      "FRONTEND_ORIGIN",
	"storage.bucket_name":  "STORAGE_BUCKET_NAME",
	"auth.jwt_secret":      "JWT_SECRET",
	"github.client_id":     "GITHUB_CLIENT_ID",
	"github.client_secret": "GITHUB_CLIENT_SECRET",
	"server.port":          "PORT",
}

// Load loads the configuration from egg.yml or egg.yaml
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads the configuration from path, or from egg.yml / egg.yaml
// in the working directory or $EGG_CONFIG when path is empty. A .env file
// in the working directory is read first.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("EGG_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("egg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "EGG_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Auth.JWTSecret == "" && config.IsDevelopment() {
		config.Auth.JWTSecret = devSecret
	}
	if config.Server.PublicURL == "" {
		config.Server.PublicURL = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	}
	if config.GitHub.RedirectURL == "" {
		config.GitHub.RedirectURL = strings.TrimSuffix(config.Server.PublicURL, "/") + "/api/v1/auth/github/callback"
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.time_zone", "UTC")
	v.SetDefault("server.pprof_addr", "")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.url", "postgres://localhost:5432/portfolio_egg_development?sslmode=disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 14*24*time.Hour)
	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("github.redirect_url", "")
	v.SetDefault("frontend.origin", "http://localhost:5173")

	v.SetDefault("storage.dir", "storage")
	v.SetDefault("storage.bucket_name", "")
	v.SetDefault("storage.public_base_url", "https://storage.googleapis.com")
	v.SetDefault("storage.max_upload_bytes", 5<<20)

	v.SetDefault("ratelimit.requests_per_minute", 300)
	v.SetDefault("ratelimit.auth_requests_per_minute", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("jobs.blob_gc_schedule", "@every 1h")
	v.SetDefault("jobs.blob_gc_grace", 24*time.Hour)
}

// IsDevelopment reports whether the development environment is selected
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == EnvDevelopment
}

// Address is the listen address of the HTTP server
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location is the zone whose calendar decides release dates
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Server.TimeZone)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}
	switch cfg.Database.Driver {
	case "pgx", "postgres", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be one of pgx, postgres, sqlite3, got: %s", cfg.Database.Driver)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in the %s environment", cfg.Env)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be positive")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("server.time_zone: %w", err)
	}
	return nil
}
