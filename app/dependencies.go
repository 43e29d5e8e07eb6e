package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/food-enrich/config"
	"github.com/upb/food-enrich/handlers"
	"github.com/upb/food-enrich/middleware"
	"github.com/upb/food-enrich/repositories"
	"github.com/upb/food-enrich/repositories/postgres"
	"github.com/upb/food-enrich/services/audit"
	"github.com/upb/food-enrich/services/enrichment"
	"github.com/upb/food-enrich/services/providers"
	"github.com/upb/food-enrich/services/providers/edamam"
	"github.com/upb/food-enrich/services/providers/fdc"
	"github.com/upb/food-enrich/services/providers/fixture"
	"github.com/upb/food-enrich/services/providers/openfoodfacts"
	"github.com/upb/food-enrich/services/routing"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil when no database is configured
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Lookups repositories.LookupRepository

	// Enrichment pipeline
	Providers  *providers.Registry
	Router     *routing.RoutingService
	Cache      *enrichment.LookupCache
	Audit      *audit.Service
	Enrichment *enrichment.Service

	// HTTP middleware
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter

	stopCache chan struct{}
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// PostgreSQL is optional; without it lookups are served but not persisted
	if cfg.Database != nil {
		if err := deps.initDatabase(ctx, *cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		logger.Warn("no database configured, lookup history disabled")
	}

	if err := deps.initProviders(cfg.Providers, cfg.IsProduction()); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initEnrichment(cfg); err != nil {
		deps.shutdownWorkers(ctx)
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize enrichment: %w", err)
	}

	if err := deps.initAuth(cfg.Auth); err != nil {
		deps.shutdownWorkers(ctx)
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if cfg.RateLimit.Enabled {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	}

	logger.Info("all dependencies initialized successfully",
		zap.Int("providers", deps.Providers.GetProviderCount()),
		zap.Bool("history", deps.DB != nil),
		zap.Bool("auth", deps.AuthMiddleware.Enabled()),
		zap.Bool("rate_limit", deps.RateLimiter != nil))
	return deps, nil
}

// initDatabase opens the pool, creates the schema and builds repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg config.DatabaseConfig) error {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.Lookups = factory.NewRepositories().Lookups

	d.Logger.Info("repositories initialized")
	return nil
}

// initProviders registers an HTTP adapter for every provider with
// credentials. Outside production, roles left empty are served by fixtures.
func (d *Dependencies) initProviders(cfg config.ProvidersConfig, production bool) error {
	fixtures := fixture.Defaults()
	if cfg.FixturesFile != "" {
		loaded, err := fixture.LoadFile(cfg.FixturesFile)
		if err != nil {
			return err
		}
		fixtures = loaded
	}

	builder := providers.NewRegistryBuilder()
	if cfg.UseFixtures {
		registry, err := fixture.Register(builder, fixtures).Build(nil)
		if err != nil {
			return err
		}
		d.Providers = registry
		d.Logger.Info("using fixture providers", zap.Int("count", registry.GetProviderCount()))
		return nil
	}

	configs := providerConfigs(cfg)
	registry, err := builder.
		WithProviderBuilder(providers.ProviderBranded, func(c providers.ProviderConfig) (providers.FoodProvider, error) {
			return openfoodfacts.NewAdapter(c), nil
		}).
		WithProviderBuilder(providers.ProviderGeneric, func(c providers.ProviderConfig) (providers.FoodProvider, error) {
			return edamam.NewAdapter(c)
		}).
		WithProviderBuilder(providers.ProviderMinimal, func(c providers.ProviderConfig) (providers.FoodProvider, error) {
			return fdc.NewAdapter(c)
		}).
		Build(configs)
	if err != nil {
		return err
	}

	for id := range configs {
		d.Logger.Info("registered provider", zap.String("provider", string(id)))
	}

	if !production {
		for _, id := range []providers.ProviderID{providers.ProviderBranded, providers.ProviderGeneric, providers.ProviderMinimal} {
			if _, err := registry.GetProvider(id); err == nil {
				continue
			}
			if p, ok := fixtures[id]; ok {
				if err := registry.RegisterProvider(p); err != nil {
					return err
				}
				d.Logger.Info("provider not configured, using fixtures", zap.String("provider", string(id)))
			}
		}
	}

	if registry.GetProviderCount() == 0 {
		d.Logger.Warn("no food providers configured")
	}

	d.Providers = registry
	return nil
}

// providerConfigs returns configs only for providers that have credentials
func providerConfigs(cfg config.ProvidersConfig) map[providers.ProviderID]providers.ProviderConfig {
	base := providers.DefaultProviderConfig()
	configs := make(map[providers.ProviderID]providers.ProviderConfig)

	if cfg.OpenFoodFacts.Enabled {
		c := base
		c.BaseURL = cfg.OpenFoodFacts.BaseURL
		c.UserAgent = cfg.OpenFoodFacts.UserAgent
		c.Timeout = cfg.OpenFoodFacts.Timeout
		c.MaxRetries = cfg.OpenFoodFacts.MaxRetries
		configs[providers.ProviderBranded] = c
	}

	if cfg.Edamam.AppID != "" && cfg.Edamam.AppKey != "" {
		c := base
		c.AppID = cfg.Edamam.AppID
		c.APIKey = cfg.Edamam.AppKey
		c.BaseURL = cfg.Edamam.BaseURL
		c.Timeout = cfg.Edamam.Timeout
		c.MaxRetries = cfg.Edamam.MaxRetries
		configs[providers.ProviderGeneric] = c
	}

	if cfg.FDC.APIKey != "" {
		c := base
		c.APIKey = cfg.FDC.APIKey
		c.BaseURL = cfg.FDC.BaseURL
		c.Timeout = cfg.FDC.Timeout
		c.MaxRetries = cfg.FDC.MaxRetries
		configs[providers.ProviderMinimal] = c
	}

	return configs
}

// RoutingFlags maps the routing configuration onto router flags
func RoutingFlags(cfg config.RoutingConfig) routing.Flags {
	return routing.Flags{
		SandwichLock:    cfg.SandwichLock,
		SafeMode:        cfg.SafeMode,
		BrandedCallCap:  cfg.BrandedCallCap,
		Diagnostics:     cfg.Diagnostics,
		ProviderTimeout: cfg.ProviderTimeout,
	}
}

// initEnrichment builds the router, cache, audit recorder and service
func (d *Dependencies) initEnrichment(cfg *config.Config) error {
	d.Router = routing.NewRoutingService(d.Providers, RoutingFlags(cfg.Routing), d.Logger)

	if cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 || cfg.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("cache ttl and cleanup interval must be positive, got %s and %s",
				cfg.Cache.TTL, cfg.Cache.CleanupInterval)
		}
		d.Cache = enrichment.NewLookupCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
		d.stopCache = make(chan struct{})
		go d.Cache.StartCleanupWorker(cfg.Cache.CleanupInterval, d.stopCache)
	}

	var recorder audit.Recorder
	if d.Lookups != nil {
		d.Audit = audit.NewService(d.Lookups, d.Logger, audit.Config{
			BufferSize:   cfg.Audit.BufferSize,
			WorkerCount:  cfg.Audit.Workers,
			WriteTimeout: cfg.Audit.WriteTimeout,
		})
		if err := d.Audit.Start(); err != nil {
			return fmt.Errorf("failed to start audit service: %w", err)
		}
		recorder = d.Audit
	}

	d.Enrichment = enrichment.NewService(d.Router, d.Cache, recorder, d.Lookups, d.Logger)
	return nil
}

// initAuth enables bearer token checks when a signing secret is configured
func (d *Dependencies) initAuth(cfg config.AuthConfig) error {
	if cfg.JWTSecret == "" {
		d.Logger.Warn("AUTH_JWT_SECRET not set, API authentication disabled")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return nil
	}

	validator, err := middleware.NewJWTValidator(middleware.JWTConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
	})
	if err != nil {
		return err
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("jwt authentication enabled")
	return nil
}

// SQLDB returns the underlying pool for health checks, or nil
func (d *Dependencies) SQLDB() *sql.DB {
	if d.DB == nil {
		return nil
	}
	return d.DB.DB
}

// Status returns the runtime snapshot served by /status
func (d *Dependencies) Status() handlers.StatusInfo {
	info := handlers.StatusInfo{
		Version:     handlers.Version,
		Environment: d.Config.Environment,
		Providers:   d.Providers.ListProviders(),
		Routing:     d.Router.Flags(),
		Auth:        d.AuthMiddleware.Enabled(),
	}
	if d.Audit != nil {
		stats := d.Audit.GetStats()
		info.Audit = &stats
	}
	return info
}

// shutdownWorkers stops background goroutines, draining pending audit records
func (d *Dependencies) shutdownWorkers(ctx context.Context) error {
	var err error

	if d.Audit != nil {
		timeout := d.Config.Audit.StopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < timeout {
				timeout = remaining
			}
		}
		if stopErr := d.Audit.Stop(timeout); stopErr != nil {
			err = fmt.Errorf("failed to stop audit service: %w", stopErr)
		}
		d.Audit = nil
	}

	if d.stopCache != nil {
		close(d.stopCache)
		d.stopCache = nil
	}

	if d.RateLimiter != nil {
		d.RateLimiter.Stop()
	}

	return err
}

func (d *Dependencies) closeDatabase() error {
	if d.RepoFactory == nil {
		return nil
	}
	err := d.RepoFactory.Close()
	d.RepoFactory = nil
	return err
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if err := d.shutdownWorkers(ctx); err != nil {
		errs = append(errs, err)
	}

	// Close database connection after the audit workers have drained
	if err := d.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	} else if d.DB != nil {
		d.Logger.Info("database connection closed")
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
