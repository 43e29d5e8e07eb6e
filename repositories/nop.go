package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/upb/food-enrich/models"
)

// NopLookupRepository discards writes and finds nothing. It is used when no
// database is configured.
type NopLookupRepository struct{}

// NewNopLookupRepository creates a repository that stores nothing
func NewNopLookupRepository() LookupRepository {
	return NopLookupRepository{}
}

func (NopLookupRepository) Insert(ctx context.Context, lookup *models.EnrichmentLookup) error {
	return nil
}

func (NopLookupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EnrichmentLookup, error) {
	return nil, ErrNotFound
}

func (NopLookupRepository) List(ctx context.Context, limit, offset int) ([]*models.EnrichmentLookup, error) {
	return []*models.EnrichmentLookup{}, nil
}

func (NopLookupRepository) CountByDecision(ctx context.Context) ([]models.DecisionCount, error) {
	return []models.DecisionCount{}, nil
}
