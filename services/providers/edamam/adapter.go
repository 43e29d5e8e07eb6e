// Package edamam implements the generic-ingredient provider on top of the
// Edamam food database parser API.
package edamam

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/upb/food-enrich/services/providers"
)

const defaultBaseURL = "https://api.edamam.com"

// genericCategory is the Edamam category for non-branded foods
const genericCategory = "Generic foods"

// nutrientKeys maps Edamam nutrient codes to per-100g payload keys
var nutrientKeys = map[string]string{
	"ENERC_KCAL": "energy-kcal_100g",
	"PROCNT":     "proteins_100g",
	"CHOCDF":     "carbohydrates_100g",
	"FAT":        "fat_100g",
	"FIBTG":      "fiber_100g",
	"SUGAR":      "sugars_100g",
}

// Adapter implements providers.FoodProvider for Edamam
type Adapter struct {
	config providers.ProviderConfig
	client *providers.HTTPClient
}

// NewAdapter creates a new Edamam adapter. AppID and APIKey are required.
func NewAdapter(config providers.ProviderConfig) (*Adapter, error) {
	if config.AppID == "" || config.APIKey == "" {
		return nil, errors.New("edamam: app id and api key are required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Adapter{
		config: config,
		client: providers.NewHTTPClient(providers.ProviderGeneric, config),
	}, nil
}

// ID returns the routing role
func (a *Adapter) ID() providers.ProviderID {
	return providers.ProviderGeneric
}

// Lookup parses the query with Edamam and returns the best generic match
func (a *Adapter) Lookup(ctx context.Context, req providers.LookupRequest) (*providers.ProviderResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("app_id", a.config.AppID)
	params.Set("app_key", a.config.APIKey)
	params.Set("ingr", query)
	params.Set("nutrition-type", "logging")

	var resp parserResponse
	if err := a.client.GetJSON(ctx, a.config.BaseURL+"/api/food-database/v2/parser?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	hint := resp.best(query)
	if hint == nil {
		return nil, nil
	}

	return providers.NewProviderResult(a.ID(), providers.MatchConfidence(query, hint.Food.Label), hint.toFoodData()), nil
}

type parserResponse struct {
	Text   string `json:"text"`
	Parsed []struct {
		Food food `json:"food"`
	} `json:"parsed"`
	Hints []hint `json:"hints"`
}

type hint struct {
	Food     food      `json:"food"`
	Measures []measure `json:"measures"`
}

type food struct {
	FoodID            string             `json:"foodId"`
	Label             string             `json:"label"`
	Brand             string             `json:"brand"`
	Category          string             `json:"category"`
	FoodContentsLabel string             `json:"foodContentsLabel"`
	Nutrients         map[string]float64 `json:"nutrients"`
}

type measure struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// best prefers the parser's own match, then the highest-scoring generic hint
func (r *parserResponse) best(query string) *hint {
	if len(r.Parsed) > 0 {
		parsed := r.Parsed[0].Food
		for i := range r.Hints {
			if r.Hints[i].Food.FoodID == parsed.FoodID {
				return &r.Hints[i]
			}
		}
		return &hint{Food: parsed}
	}

	var (
		best      *hint
		bestScore float64
	)
	for i := range r.Hints {
		h := &r.Hints[i]
		score := providers.MatchConfidence(query, h.Food.Label)
		if h.Food.Category == genericCategory {
			score += 0.5
		}
		if best == nil || score > bestScore {
			best, bestScore = h, score
		}
	}
	return best
}

func (h *hint) toFoodData() *providers.FoodData {
	nutriments := make(map[string]any, len(h.Food.Nutrients)+1)
	for code, value := range h.Food.Nutrients {
		if key, ok := nutrientKeys[code]; ok {
			nutriments[key] = value
		}
	}
	if na, ok := h.Food.Nutrients["NA"]; ok {
		nutriments["sodium_100g"] = na / 1000
	}
	for _, m := range h.Measures {
		if m.Label == "Serving" && m.Weight > 0 {
			nutriments["serving_weight_grams"] = m.Weight
			break
		}
	}

	ingredients := providers.SplitIngredients(h.Food.FoodContentsLabel, ";")
	if len(ingredients) == 0 && h.Food.Label != "" {
		ingredients = []string{h.Food.Label}
	}

	return &providers.FoodData{
		ExternalID:  h.Food.FoodID,
		Name:        h.Food.Label,
		Brand:       h.Food.Brand,
		Ingredients: ingredients,
		Nutriments:  nutriments,
	}
}
