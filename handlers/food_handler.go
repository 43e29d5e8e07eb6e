package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/food-enrich/services"
	"github.com/upb/food-enrich/services/nutrition"
	"github.com/upb/food-enrich/services/serving"
	"github.com/upb/food-enrich/utils"
)

// NormalizeRequest is the body of POST /api/v1/nutrition/normalize.
// Without serving_grams the serving size is read from the nutriments.
type NormalizeRequest struct {
	Nutriments   map[string]any `json:"nutriments" validate:"required"`
	ServingGrams *float64       `json:"serving_grams,omitempty" validate:"omitempty,gt=0"`
}

// FoodHandler exposes the serving parser and nutrient normalizer
type FoodHandler struct {
	logger *zap.Logger
}

// NewFoodHandler creates a new FoodHandler
func NewFoodHandler(logger *zap.Logger) *FoodHandler {
	return &FoodHandler{logger: logger}
}

// HandleParseServing handles GET /api/v1/serving/parse?text=
func (h *FoodHandler) HandleParseServing(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if strings.TrimSpace(text) == "" {
		HandleServiceError(w, services.ErrInvalidInput.Clone().WithDetail("text", "text is required"), h.logger)
		return
	}

	if err := utils.WriteOK(w, serving.ParseServingFromText(text)); err != nil {
		h.logger.Error("failed to write serving response", zap.Error(err))
	}
}

// HandleNormalize handles POST /api/v1/nutrition/normalize
func (h *FoodHandler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if len(req.Nutriments) == 0 {
		HandleServiceError(w, services.ErrInvalidNutrients.Clone().WithDetail("nutriments", "at least one nutrient field is required"), h.logger)
		return
	}

	var result nutrition.NormalizedNutrition
	if req.ServingGrams != nil {
		result = nutrition.Normalize(req.Nutriments, req.ServingGrams)
	} else {
		result = nutrition.NormalizeProduct(req.Nutriments)
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write nutrition response", zap.Error(err))
	}
}
