package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/food-enrich/models"
	"github.com/upb/food-enrich/repositories"
	"go.uber.org/zap"
)

const maxListLimit = 200

// LookupRepository implements the repositories.LookupRepository interface
type LookupRepository struct {
	db     *DB
	txm    repositories.TransactionManager
	logger *zap.Logger
}

// NewLookupRepository creates a new lookup repository
func NewLookupRepository(db *DB, txm repositories.TransactionManager, logger *zap.Logger) repositories.LookupRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if txm == nil {
		txm = NewTransactionManager(db, logger)
	}
	return &LookupRepository{
		db:     db,
		txm:    txm,
		logger: logger,
	}
}

// Insert writes the lookup row and one row per attempt in a single transaction
func (r *LookupRepository) Insert(ctx context.Context, lookup *models.EnrichmentLookup) error {
	lookupQuery := `
		INSERT INTO enrichment_lookups (
			id, query, context, decision, why_picked, provider, source,
			ingredients_len, confidence, cached, guards, time_ms, record,
			request_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`
	attemptQuery := `
		INSERT INTO enrichment_attempts (lookup_id, provider, calls, best_ingredients_len, errors)
		VALUES ($1, $2, $3, $4, $5)
	`

	err := r.txm.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		executor := GetExecutor(txCtx, r.db)

		var record interface{}
		if len(lookup.Record) > 0 {
			record = []byte(lookup.Record)
		}

		_, err := executor.ExecContext(txCtx, lookupQuery,
			lookup.ID,
			lookup.Query,
			lookup.Context,
			lookup.Decision,
			lookup.WhyPicked,
			lookup.Provider,
			lookup.Source,
			lookup.IngredientsLen,
			lookup.Confidence,
			lookup.Cached,
			lookup.Guards,
			lookup.TimeMs,
			record,
			nullString(lookup.RequestID),
			lookup.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert lookup: %w", err)
		}

		for _, a := range lookup.Attempts {
			if _, err := executor.ExecContext(txCtx, attemptQuery,
				lookup.ID,
				a.Provider,
				a.Calls,
				a.BestIngredientsLen,
				a.Errors,
			); err != nil {
				return fmt.Errorf("failed to insert attempt for %s: %w", a.Provider, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("lookup inserted",
		zap.String("id", lookup.ID.String()),
		zap.String("decision", lookup.Decision),
		zap.Int("attempts", len(lookup.Attempts)),
	)
	return nil
}

// GetByID retrieves a lookup and its attempts
func (r *LookupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EnrichmentLookup, error) {
	query := `
		SELECT id, query, context, decision, why_picked, provider, source,
		       ingredients_len, confidence, cached, guards, time_ms, record,
		       request_id, created_at
		FROM enrichment_lookups
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	lookup, err := scanLookup(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get lookup: %w", err)
	}

	attempts, err := r.attempts(ctx, executor, id)
	if err != nil {
		return nil, err
	}
	lookup.Attempts = attempts

	return lookup, nil
}

func (r *LookupRepository) attempts(ctx context.Context, executor Executor, id uuid.UUID) ([]models.ProviderAttempt, error) {
	query := `
		SELECT lookup_id, provider, calls, best_ingredients_len, errors
		FROM enrichment_attempts
		WHERE lookup_id = $1
		ORDER BY provider
	`

	rows, err := executor.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.ProviderAttempt
	for rows.Next() {
		var a models.ProviderAttempt
		if err := rows.Scan(&a.LookupID, &a.Provider, &a.Calls, &a.BestIngredientsLen, &a.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// List retrieves lookups newest first
func (r *LookupRepository) List(ctx context.Context, limit, offset int) ([]*models.EnrichmentLookup, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, query, context, decision, why_picked, provider, source,
		       ingredients_len, confidence, cached, guards, time_ms, record,
		       request_id, created_at
		FROM enrichment_lookups
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list lookups: %w", err)
	}
	defer rows.Close()

	lookups := []*models.EnrichmentLookup{}
	for rows.Next() {
		lookup, err := scanLookup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lookup: %w", err)
		}
		lookups = append(lookups, lookup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lookups: %w", err)
	}

	return lookups, nil
}

// CountByDecision groups lookups by routing decision
func (r *LookupRepository) CountByDecision(ctx context.Context) ([]models.DecisionCount, error) {
	query := `
		SELECT decision, COUNT(*)
		FROM enrichment_lookups
		GROUP BY decision
		ORDER BY decision
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count lookups: %w", err)
	}
	defer rows.Close()

	counts := []models.DecisionCount{}
	for rows.Next() {
		var c models.DecisionCount
		if err := rows.Scan(&c.Decision, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan decision count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decision counts: %w", err)
	}

	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLookup(row rowScanner) (*models.EnrichmentLookup, error) {
	lookup := &models.EnrichmentLookup{}
	var (
		record    []byte
		requestID sql.NullString
	)

	err := row.Scan(
		&lookup.ID,
		&lookup.Query,
		&lookup.Context,
		&lookup.Decision,
		&lookup.WhyPicked,
		&lookup.Provider,
		&lookup.Source,
		&lookup.IngredientsLen,
		&lookup.Confidence,
		&lookup.Cached,
		&lookup.Guards,
		&lookup.TimeMs,
		&record,
		&requestID,
		&lookup.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(record) > 0 {
		lookup.Record = record
	}
	lookup.RequestID = requestID.String
	return lookup, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
