package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/food-enrich/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// LookupRepository persists enrichment lookups and their provider attempts
type LookupRepository interface {
	// Insert stores the lookup and all of its attempts atomically
	Insert(ctx context.Context, lookup *models.EnrichmentLookup) error

	// GetByID retrieves a lookup with its attempts
	GetByID(ctx context.Context, id uuid.UUID) (*models.EnrichmentLookup, error)

	// List retrieves lookups newest first, without attempts
	List(ctx context.Context, limit, offset int) ([]*models.EnrichmentLookup, error)

	// CountByDecision returns how many lookups ended in each routing decision
	CountByDecision(ctx context.Context) ([]models.DecisionCount, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Lookups LookupRepository
}
