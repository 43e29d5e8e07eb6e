package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/food-enrich/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// WrapDB wraps an already opened pool
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// Schema creates the lookup tables
const Schema = `
		CREATE TABLE IF NOT EXISTS enrichment_lookups (
			id UUID PRIMARY KEY,
			query TEXT NOT NULL,
			context VARCHAR(16) NOT NULL,
			decision VARCHAR(32) NOT NULL,
			why_picked VARCHAR(100) NOT NULL,
			provider VARCHAR(32),
			source VARCHAR(32),
			ingredients_len INTEGER NOT NULL DEFAULT 0,
			confidence DOUBLE PRECISION,
			cached BOOLEAN NOT NULL DEFAULT false,
			guards TEXT[] NOT NULL DEFAULT '{}',
			time_ms BIGINT NOT NULL DEFAULT 0,
			record JSONB,
			request_id VARCHAR(255),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS enrichment_attempts (
			lookup_id UUID NOT NULL REFERENCES enrichment_lookups(id) ON DELETE CASCADE,
			provider VARCHAR(32) NOT NULL,
			calls INTEGER NOT NULL DEFAULT 0,
			best_ingredients_len INTEGER NOT NULL DEFAULT 0,
			errors INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (lookup_id, provider)
		);

		CREATE INDEX IF NOT EXISTS idx_enrichment_lookups_created_at ON enrichment_lookups(created_at);
		CREATE INDEX IF NOT EXISTS idx_enrichment_lookups_decision ON enrichment_lookups(decision);
		CREATE INDEX IF NOT EXISTS idx_enrichment_lookups_request_id ON enrichment_lookups(request_id);
	`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
