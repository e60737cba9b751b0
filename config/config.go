package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`
	Production   bool          `json:"production"`

	// Application paths
	LogDir string `json:"log_dir"`

	// Middleware settings
	Middleware MiddlewareConfig `json:"middleware"`

	// CORS Configuration
	CORS CORSConfig `json:"cors"`

	// Inbound rate limiting
	RateLimit RateLimitConfig `json:"rate_limit"`

	Database   DatabaseConfig   `json:"database"`
	Archive    ArchiveConfig    `json:"archive"`
	Transcript TranscriptConfig `json:"transcript"`
	Resolve    ResolveConfig    `json:"resolve"`
	Queue      QueueConfig      `json:"queue"`

	// AlwaysOK sends every categorized transcript result with HTTP 200 for
	// clients that drop structured bodies on non-2xx responses.
	AlwaysOK bool `json:"always_ok"`

	// Application version
	Version string `json:"version"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type MiddlewareConfig struct {
	EnableRecover   bool `json:"enable_recover"`
	EnableRequestID bool `json:"enable_request_id"`
	EnableLogger    bool `json:"enable_logger"`
	EnableCORS      bool `json:"enable_cors"`
	EnableRateLimit bool `json:"enable_rate_limit"`
	EnableCompress  bool `json:"enable_compress"`
	EnableETag      bool `json:"enable_etag"`
	EnableDebugMode bool `json:"enable_debug_mode"`
}

type DatabaseConfig struct {
	Driver             string        `json:"driver"`
	Path               string        `json:"path"`
	URL                string        `json:"-"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

// ArchiveConfig points at an S3-compatible bucket. An empty bucket
// disables archiving.
type ArchiveConfig struct {
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
}

func (a ArchiveConfig) Enabled() bool { return a.Bucket != "" }

type TranscriptConfig struct {
	// Hosted API; an empty key disables it.
	HostedEndpoint  string `json:"hosted_endpoint"`
	HostedAPIKey    string `json:"-"`
	HostedKeyHeader string `json:"hosted_key_header"`

	WatchURL       string `json:"watch_url"`
	UserAgent      string `json:"user_agent"`
	ConsentCookie  string `json:"consent_cookie"`
	AcceptLanguage string `json:"accept_language"`
	MaxPageBytes   int64  `json:"max_page_bytes"`

	HTTPTimeout       time.Duration `json:"http_timeout"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	Burst             int           `json:"burst"`

	BreakerFailures int           `json:"breaker_failures"`
	BreakerCooldown time.Duration `json:"breaker_cooldown"`
}

// ResolveConfig is the caller-side retry policy and cache lifetime.
type ResolveConfig struct {
	Attempts       int           `json:"attempts"`
	AttemptTimeout time.Duration `json:"attempt_timeout"`
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
	Multiplier     float64       `json:"multiplier"`
	CacheTTL       time.Duration `json:"cache_ttl"`
}

type QueueConfig struct {
	Workers   int           `json:"workers"`
	Capacity  int           `json:"capacity"`
	HungAfter time.Duration `json:"hung_after"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

func defaultDevConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableCORS:      true,
		EnableRateLimit: false,
		EnableCompress:  false,
		EnableETag:      false,
		EnableDebugMode: true,
	}
}

func defaultProdConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableCORS:      true,
		EnableRateLimit: true,
		EnableCompress:  true,
		EnableETag:      true,
		EnableDebugMode: false,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	values, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	fileValues = values

	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),
		Production:   getEnv("ENV", "") == "production",

		LogDir: getEnv("LOG_DIR", "/var/log/yt-transcript"),

		Version: getEnv("VERSION", "1.0.0"),

		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 45*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		AlwaysOK: getEnvAsBool("ALWAYS_OK", false),

		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders: getEnvAsStringSlice(
				"CORS_ALLOWED_HEADERS",
				[]string{"Content-Type", "Authorization"},
			),
			ExposedHeaders:   getEnvAsStringSlice("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},

		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			Path:               getEnv("DB_PATH", "/var/lib/yt-transcript/data.db"),
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		Archive: ArchiveConfig{
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			Prefix:    getEnv("ARCHIVE_PREFIX", "transcripts"),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Region:    getEnv("ARCHIVE_REGION", "us-east-1"),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
		},

		Transcript: TranscriptConfig{
			HostedEndpoint:    getEnv("TRANSCRIPT_API_URL", "https://api.supadata.ai/v1/youtube/transcript"),
			HostedAPIKey:      getEnv("TRANSCRIPT_API_KEY", ""),
			HostedKeyHeader:   getEnv("TRANSCRIPT_API_KEY_HEADER", "x-api-key"),
			WatchURL:          getEnv("YOUTUBE_WATCH_URL", "https://www.youtube.com/watch"),
			UserAgent:         getEnv("YOUTUBE_USER_AGENT", ""),
			ConsentCookie:     getEnv("YOUTUBE_CONSENT_COOKIE", ""),
			AcceptLanguage:    getEnv("YOUTUBE_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			MaxPageBytes:      getEnvAsInt64("YOUTUBE_MAX_PAGE_BYTES", 8<<20),
			HTTPTimeout:       getEnvAsDuration("YOUTUBE_HTTP_TIMEOUT", 8*time.Second),
			RequestsPerSecond: getEnvAsFloat("YOUTUBE_RPS", 2),
			Burst:             getEnvAsInt("YOUTUBE_BURST", 4),
			BreakerFailures:   getEnvAsInt("TRANSCRIPT_API_BREAKER_FAILURES", 5),
			BreakerCooldown:   getEnvAsDuration("TRANSCRIPT_API_BREAKER_COOLDOWN", time.Minute),
		},

		Resolve: ResolveConfig{
			Attempts:       getEnvAsInt("RESOLVE_ATTEMPTS", 3),
			AttemptTimeout: getEnvAsDuration("RESOLVE_ATTEMPT_TIMEOUT", 8*time.Second),
			InitialBackoff: getEnvAsDuration("RESOLVE_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     getEnvAsDuration("RESOLVE_MAX_BACKOFF", 4*time.Second),
			Multiplier:     getEnvAsFloat("RESOLVE_BACKOFF_MULTIPLIER", 2),
			CacheTTL:       getEnvAsDuration("TRANSCRIPT_CACHE_TTL", 7*24*time.Hour),
		},

		Queue: QueueConfig{
			Workers:   getEnvAsInt("QUEUE_WORKERS", 4),
			Capacity:  getEnvAsInt("QUEUE_CAPACITY", 100),
			HungAfter: getEnvAsDuration("QUEUE_HUNG_AFTER", 5*time.Minute),
		},

		Middleware: defaultDevConfig(),
	}

	if cfg.Production {
		cfg.Middleware = defaultProdConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}

	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validateServices(c); err != nil {
		return err
	}

	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
	}
	if c.Database.Driver == DriverSQLite {
		paths = append(paths, struct {
			path string
			name string
		}{filepath.Dir(c.Database.Path), "database directory"})
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Transcript.HTTPTimeout <= 0 {
		return fmt.Errorf("youtube http timeout must be positive")
	}
	if c.Resolve.AttemptTimeout <= 0 {
		return fmt.Errorf("resolve attempt timeout must be positive")
	}
	return nil
}

func validateServices(c *Config) error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Resolve.Attempts < 1 {
		return fmt.Errorf("resolve attempts must be at least 1")
	}
	if c.Transcript.RequestsPerSecond <= 0 {
		return fmt.Errorf("youtube requests per second must be positive")
	}
	if c.Queue.Workers < 1 || c.Queue.Capacity < 1 {
		return fmt.Errorf("queue workers and capacity must be positive")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := lookup(key); exists {
		return value
	}
	return defaultValue
}

func warnInvalid(key, value string, defaultValue interface{}, kind string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warnf("Invalid %s, using default", kind)
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := lookup(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		warnInvalid(key, value, defaultValue, "integer")
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := lookup(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		warnInvalid(key, value, defaultValue, "integer")
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := lookup(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		warnInvalid(key, value, defaultValue, "number")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := lookup(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		warnInvalid(key, value, defaultValue, "boolean")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := lookup(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "duration")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := lookup(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return defaultValue
}
