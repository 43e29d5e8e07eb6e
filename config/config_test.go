package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.Nil(t, cfg.Database)
				assert.True(t, cfg.Routing.SandwichLock)
				assert.False(t, cfg.Routing.SafeMode)
				assert.Equal(t, 1, cfg.Routing.BrandedCallCap)
				assert.Equal(t, 3*time.Second, cfg.Routing.ProviderTimeout)
				assert.True(t, cfg.Cache.Enabled)
				assert.Equal(t, 1000, cfg.Cache.MaxSize)
				assert.Empty(t, cfg.Auth.JWTSecret)
				assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
			},
		},
		{
			name: "database from DB_* vars",
			envVars: map[string]string{
				"DB_HOST": "db.internal",
				"DB_PORT": "5433",
				"DB_USER": "enrich",
				"DB_NAME": "foods",
			},
			check: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.Database)
				assert.Equal(t, "db.internal", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
				assert.Equal(t, "enrich", cfg.Database.User)
				assert.Equal(t, "foods", cfg.Database.Database)
				assert.True(t, cfg.Database.InitSchema)
			},
		},
		{
			name: "database from DATABASE_URL",
			envVars: map[string]string{
				"DATABASE_URL":      "postgres://u:p@pg.example.com:6543/foods?sslmode=require",
				"DB_MAX_OPEN_CONNS": "50",
			},
			check: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.Database)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
				assert.Equal(t, "host=pg.example.com port=6543 database=foods", cfg.Database.LogString())
			},
		},
		{
			name: "routing flags from env",
			envVars: map[string]string{
				"SANDWICH_LOCK":      "false",
				"SAFE_MODE":          "true",
				"BRANDED_CALL_CAP":   "0",
				"ENRICH_DIAGNOSTICS": "true",
				"PROVIDER_TIMEOUT":   "750ms",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Routing.SandwichLock)
				assert.True(t, cfg.Routing.SafeMode)
				assert.Equal(t, 0, cfg.Routing.BrandedCallCap)
				assert.True(t, cfg.Routing.Diagnostics)
				assert.Equal(t, 750*time.Millisecond, cfg.Routing.ProviderTimeout)
			},
		},
		{
			name: "provider credentials",
			envVars: map[string]string{
				"OFF_ENABLED":    "true",
				"EDAMAM_APP_ID":  "app",
				"EDAMAM_APP_KEY": "key",
				"FDC_API_KEY":    "fdc",
				"OFF_TIMEOUT":    "2s",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Providers.OpenFoodFacts.Enabled)
				assert.Equal(t, 2*time.Second, cfg.Providers.OpenFoodFacts.Timeout)
				assert.Equal(t, "app", cfg.Providers.Edamam.AppID)
				assert.Equal(t, "key", cfg.Providers.Edamam.AppKey)
				assert.Equal(t, "fdc", cfg.Providers.FDC.APIKey)
			},
		},
		{
			name: "CORS origins list",
			envVars: map[string]string{
				"CORS_ALLOWED_ORIGINS": "https://a.example.com, ,https://b.example.com",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "production with provider and auth",
			envVars: map[string]string{
				"ENVIRONMENT":     "production",
				"FDC_API_KEY":     "fdc",
				"AUTH_JWT_SECRET": "secret",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
			},
		},
		{
			name: "production without any provider",
			envVars: map[string]string{
				"ENVIRONMENT":     "production",
				"AUTH_JWT_SECRET": "secret",
			},
			wantErr: true,
		},
		{
			name: "production without auth",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"FDC_API_KEY": "fdc",
			},
			wantErr: true,
		},
		{
			name: "negative branded cap",
			envVars: map[string]string{
				"BRANDED_CALL_CAP": "-1",
			},
			wantErr: true,
		},
		{
			name: "missing feature flags file",
			envVars: map[string]string{
				"FEATURE_FLAGS_FILE": "/nonexistent/flags.yaml",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestNew_FeatureFlagsFile(t *testing.T) {
	os.Clearenv()

	path := filepath.Join(t.TempDir(), "flags.yaml")
	require.NoError(t, os.WriteFile(path, []byte("safe_mode: true\nprovider_timeout: 1500ms\n"), 0o600))

	os.Setenv("FEATURE_FLAGS_FILE", path)
	os.Setenv("BRANDED_CALL_CAP", "2")

	cfg, err := New(context.Background())
	require.NoError(t, err)

	assert.True(t, cfg.Routing.SafeMode)
	assert.Equal(t, 1500*time.Millisecond, cfg.Routing.ProviderTimeout)
	// keys absent from the file keep their env values
	assert.Equal(t, 2, cfg.Routing.BrandedCallCap)
	assert.True(t, cfg.Routing.SandwichLock)
}

func TestRoutingConfig_Overlay(t *testing.T) {
	r := RoutingConfig{SandwichLock: true, BrandedCallCap: 1, ProviderTimeout: time.Second}

	require.NoError(t, r.Overlay([]byte("sandwich_lock: false\ndiagnostics: true\n")))
	assert.False(t, r.SandwichLock)
	assert.True(t, r.Diagnostics)
	assert.Equal(t, 1, r.BrandedCallCap)

	err := r.Overlay([]byte("sandwich_lock: [not, a, bool]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid feature flags document")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:   "development",
			Routing:       RoutingConfig{BrandedCallCap: 1, ProviderTimeout: time.Second},
			Cache:         CacheConfig{Enabled: true, MaxSize: 10, TTL: time.Minute, CleanupInterval: time.Minute},
			Audit:         AuditConfig{Workers: 1},
			RateLimit:     RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1},
			Observability: ObservabilityConfig{LogLevel: "info"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid development config", mutate: func(*Config) {}},
		{
			name:   "database without user",
			mutate: func(c *Config) { c.Database = &DatabaseConfig{Host: "localhost", Database: "db"} },
			errMsg: "database user is required",
		},
		{
			name:   "database without name",
			mutate: func(c *Config) { c.Database = &DatabaseConfig{Host: "localhost", User: "u"} },
			errMsg: "database name is required",
		},
		{
			name:   "connection string skips field checks",
			mutate: func(c *Config) { c.Database = &DatabaseConfig{ConnectionString: "postgres://x"} },
		},
		{
			name:   "zero provider timeout",
			mutate: func(c *Config) { c.Routing.ProviderTimeout = 0 },
			errMsg: "provider timeout must be positive",
		},
		{
			name:   "enabled cache without size",
			mutate: func(c *Config) { c.Cache.MaxSize = 0 },
			errMsg: "cache max size",
		},
		{
			name:   "enabled cache with zero ttl",
			mutate: func(c *Config) { c.Cache.TTL = 0 },
			errMsg: "CACHE_TTL must be positive",
		},
		{
			name:   "enabled cache with zero cleanup interval",
			mutate: func(c *Config) { c.Cache.CleanupInterval = 0 },
			errMsg: "CACHE_CLEANUP_INTERVAL must be positive",
		},
		{
			name: "disabled cache skips cache checks",
			mutate: func(c *Config) {
				c.Cache = CacheConfig{Enabled: false}
			},
		},
		{
			name:   "no audit workers",
			mutate: func(c *Config) { c.Audit.Workers = 0 },
			errMsg: "audit workers",
		},
		{
			name:   "rate limit without burst",
			mutate: func(c *Config) { c.RateLimit.Burst = 0 },
			errMsg: "rate limit",
		},
		{
			name: "fixtures in production",
			mutate: func(c *Config) {
				c.Environment = "production"
				c.Providers.UseFixtures = true
			},
			errMsg: "fixture providers cannot be used in production",
		},
		{
			name:   "missing log level",
			mutate: func(c *Config) { c.Observability.LogLevel = "" },
			errMsg: "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.Equal(t, "host=localhost port=5432 database=testdb", cfg.LogString())

	cfg.ConnectionString = "postgres://u:p@h/db"
	assert.Equal(t, "postgres://u:p@h/db", cfg.DSN())
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "42", 10, 42},
		{"empty value", "", 10, 10},
		{"invalid int", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_INT", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsInt("TEST_INT", tt.defaultValue))
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"empty value", "", true, true},
		{"invalid bool", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_BOOL", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsBool("TEST_BOOL", tt.defaultValue))
		})
	}
}
