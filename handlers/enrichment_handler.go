package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/food-enrich/middleware"
	"github.com/upb/food-enrich/services/enrichment"
	"github.com/upb/food-enrich/utils"
)

// Enricher resolves food queries
type Enricher interface {
	Enrich(ctx context.Context, req enrichment.EnrichRequest) (*enrichment.EnrichResponse, error)
}

// EnrichmentHandler serves POST /api/v1/enrich
type EnrichmentHandler struct {
	service Enricher
	logger  *zap.Logger
}

// NewEnrichmentHandler creates a new EnrichmentHandler
func NewEnrichmentHandler(service Enricher, logger *zap.Logger) *EnrichmentHandler {
	return &EnrichmentHandler{
		service: service,
		logger:  logger,
	}
}

// HandleEnrich handles POST /api/v1/enrich
func (h *EnrichmentHandler) HandleEnrich(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req enrichment.EnrichRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	req.RequestID = requestID

	resp, err := h.service.Enrich(ctx, req)
	if err != nil {
		h.logger.Debug("enrichment failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("enrichment served",
		zap.String("request_id", requestID),
		zap.String("lookup_id", resp.LookupID.String()),
		zap.String("decision", string(resp.Decision)),
		zap.Bool("cached", resp.Cached))

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write enrichment response", zap.Error(err))
	}
}
