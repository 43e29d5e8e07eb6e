package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: when nil, lookups are not persisted
	Providers     ProvidersConfig
	Routing       RoutingConfig
	Cache         CacheConfig
	Audit         AuditConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	InitSchema       bool
}

// ProvidersConfig holds the upstream food database settings
type ProvidersConfig struct {
	OpenFoodFacts OpenFoodFactsConfig
	Edamam        EdamamConfig
	FDC           FDCConfig
	// FixturesFile replaces the built-in fixture set used for providers without credentials
	FixturesFile string
	// UseFixtures forces every provider to the fixture set, even when credentials exist
	UseFixtures bool
}

// OpenFoodFactsConfig holds the branded provider configuration
type OpenFoodFactsConfig struct {
	Enabled    bool
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// EdamamConfig holds the generic provider configuration
type EdamamConfig struct {
	AppID      string
	AppKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// FDCConfig holds the minimal provider configuration
type FDCConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// RoutingConfig holds the router feature flags
type RoutingConfig struct {
	SandwichLock    bool          `yaml:"sandwich_lock"`
	SafeMode        bool          `yaml:"safe_mode"`
	BrandedCallCap  int           `yaml:"branded_call_cap"`
	Diagnostics     bool          `yaml:"diagnostics"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
}

// CacheConfig holds the lookup cache configuration
type CacheConfig struct {
	Enabled         bool
	MaxSize         int
	TTL             time.Duration
	CleanupInterval time.Duration
}

// AuditConfig holds the async lookup recorder configuration
type AuditConfig struct {
	BufferSize   int
	Workers      int
	StopTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds bearer token configuration. Auth is off when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// RateLimitConfig holds the per-client token bucket settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// CORSConfig holds allowed origins for browser clients
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 20*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Providers: ProvidersConfig{
			OpenFoodFacts: OpenFoodFactsConfig{
				Enabled:    getEnvAsBool("OFF_ENABLED", false),
				BaseURL:    getEnv("OFF_BASE_URL", "https://world.openfoodfacts.org"),
				UserAgent:  getEnv("OFF_USER_AGENT", "food-enrich/1.0"),
				Timeout:    getEnvAsDuration("OFF_TIMEOUT", 5*time.Second),
				MaxRetries: getEnvAsInt("OFF_MAX_RETRIES", 2),
			},
			Edamam: EdamamConfig{
				AppID:      getEnv("EDAMAM_APP_ID", ""),
				AppKey:     getEnv("EDAMAM_APP_KEY", ""),
				BaseURL:    getEnv("EDAMAM_BASE_URL", "https://api.edamam.com"),
				Timeout:    getEnvAsDuration("EDAMAM_TIMEOUT", 5*time.Second),
				MaxRetries: getEnvAsInt("EDAMAM_MAX_RETRIES", 2),
			},
			FDC: FDCConfig{
				APIKey:     getEnv("FDC_API_KEY", ""),
				BaseURL:    getEnv("FDC_BASE_URL", "https://api.nal.usda.gov/fdc"),
				Timeout:    getEnvAsDuration("FDC_TIMEOUT", 5*time.Second),
				MaxRetries: getEnvAsInt("FDC_MAX_RETRIES", 2),
			},
			FixturesFile: getEnv("PROVIDER_FIXTURES_FILE", ""),
			UseFixtures:  getEnvAsBool("PROVIDER_USE_FIXTURES", false),
		},
		Routing: RoutingConfig{
			SandwichLock:    getEnvAsBool("SANDWICH_LOCK", true),
			SafeMode:        getEnvAsBool("SAFE_MODE", false),
			BrandedCallCap:  getEnvAsInt("BRANDED_CALL_CAP", 1),
			Diagnostics:     getEnvAsBool("ENRICH_DIAGNOSTICS", false),
			ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			Enabled:         getEnvAsBool("CACHE_ENABLED", true),
			MaxSize:         getEnvAsInt("CACHE_MAX_SIZE", 1000),
			TTL:             getEnvAsDuration("CACHE_TTL", 10*time.Minute),
			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
		},
		Audit: AuditConfig{
			BufferSize:   getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:      getEnvAsInt("AUDIT_WORKERS", 2),
			StopTimeout:  getEnvAsDuration("AUDIT_STOP_TIMEOUT", 5*time.Second),
			WriteTimeout: getEnvAsDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
			Audience:  getEnv("AUTH_JWT_AUDIENCE", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if path := getEnv("FEATURE_FLAGS_FILE", ""); path != "" {
		if err := cfg.Routing.LoadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load feature flags: %w", err)
		}
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required when DB_HOST is used")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Routing.BrandedCallCap < 0 {
		return fmt.Errorf("branded call cap must not be negative")
	}
	if c.Routing.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}

	if c.Cache.Enabled {
		if c.Cache.MaxSize <= 0 {
			return fmt.Errorf("cache max size must be positive when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("CACHE_TTL must be positive when the cache is enabled")
		}
		if c.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("CACHE_CLEANUP_INTERVAL must be positive when the cache is enabled")
		}
	}

	if c.Audit.Workers <= 0 {
		return fmt.Errorf("audit workers must be positive")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive RATE_LIMIT_RPS and RATE_LIMIT_BURST")
	}

	// Real providers and auth are required in production
	if c.IsProduction() {
		if c.Providers.UseFixtures {
			return fmt.Errorf("fixture providers cannot be used in production")
		}
		if !c.Providers.OpenFoodFacts.Enabled &&
			c.Providers.Edamam.AppKey == "" &&
			c.Providers.FDC.APIKey == "" {
			return fmt.Errorf("at least one food provider must be configured in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// LoadFile overlays routing flags from a YAML document. Keys missing from the
// file keep their current values.
func (r *RoutingConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return r.Overlay(data)
}

// Overlay decodes YAML flags on top of the current values
func (r *RoutingConfig) Overlay(data []byte) error {
	if err := yaml.Unmarshal(data, r); err != nil {
		return fmt.Errorf("invalid feature flags document: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig returns nil when neither DATABASE_URL nor DB_HOST is set
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			InitSchema:       getEnvAsBool("DB_INIT_SCHEMA", true),
		}
	}
	if getEnv("DB_HOST", "") == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "food_enrich"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      getEnvAsBool("DB_INIT_SCHEMA", true),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
