package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/food-enrich/models"
	"github.com/upb/food-enrich/services"
	"github.com/upb/food-enrich/services/enrichment"
	"github.com/upb/food-enrich/utils"
)

// LookupHistory reads persisted enrichment lookups
type LookupHistory interface {
	HistoryEnabled() bool
	GetLookup(ctx context.Context, id uuid.UUID) (*models.EnrichmentLookup, error)
	ListLookups(ctx context.Context, limit, offset int) ([]*models.EnrichmentLookup, error)
	DecisionStats(ctx context.Context) ([]models.DecisionCount, error)
	CacheStats() (enrichment.CacheStats, bool)
}

// LookupListResponse is a page of lookups
type LookupListResponse struct {
	Lookups []*models.EnrichmentLookup `json:"lookups"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

// LookupStatsResponse summarizes lookup outcomes
type LookupStatsResponse struct {
	HistoryEnabled bool                   `json:"history_enabled"`
	Decisions      []models.DecisionCount `json:"decisions"`
	Cache          *enrichment.CacheStats `json:"cache,omitempty"`
}

// LookupHandler serves the lookup history endpoints
type LookupHandler struct {
	history LookupHistory
	logger  *zap.Logger
}

// NewLookupHandler creates a new LookupHandler
func NewLookupHandler(history LookupHistory, logger *zap.Logger) *LookupHandler {
	return &LookupHandler{
		history: history,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/lookups
func (h *LookupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.history.HistoryEnabled() {
		HandleServiceError(w, services.ErrPersistenceDisabled, h.logger)
		return
	}

	limit, offset, err := utils.ParsePagination(r.URL.Query())
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	lookups, err := h.history.ListLookups(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, LookupListResponse{Lookups: lookups, Limit: limit, Offset: offset})
}

// HandleGet handles GET /api/v1/lookups/{id}
func (h *LookupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !h.history.HistoryEnabled() {
		HandleServiceError(w, services.ErrPersistenceDisabled, h.logger)
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	lookup, err := h.history.GetLookup(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, lookup)
}

// HandleStats handles GET /api/v1/lookups/stats. Cache counters are
// reported even when history is off.
func (h *LookupHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := LookupStatsResponse{
		HistoryEnabled: h.history.HistoryEnabled(),
		Decisions:      []models.DecisionCount{},
	}

	if response.HistoryEnabled {
		counts, err := h.history.DecisionStats(r.Context())
		if err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
		response.Decisions = counts
	}

	if stats, ok := h.history.CacheStats(); ok {
		response.Cache = &stats
	}

	_ = utils.WriteOK(w, response)
}
