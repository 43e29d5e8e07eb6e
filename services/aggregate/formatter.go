package aggregate

import (
	"strconv"
	"strings"

	"github.com/upb/food-enrich/services/nutrition"
	"github.com/upb/food-enrich/services/providers"
	"github.com/upb/food-enrich/services/serving"
)

// FoodRecord is what a food-logging client displays and stores
type FoodRecord struct {
	Name        string                        `json:"name"`
	Brand       string                        `json:"brand,omitempty"`
	Barcode     string                        `json:"barcode,omitempty"`
	ExternalID  string                        `json:"external_id,omitempty"`
	Provider    providers.ProviderID          `json:"provider"`
	Source      providers.Source              `json:"source"`
	Confidence  float64                       `json:"confidence"`
	Ingredients []string                      `json:"ingredients"`
	Serving     serving.Info                  `json:"serving"`
	ServingText string                        `json:"serving_text"`
	Nutrition   nutrition.NormalizedNutrition `json:"nutrition"`
	Cached      bool                          `json:"cached,omitempty"`
}

// Formatter builds FoodRecords from aggregate results
type Formatter struct{}

// NewFormatter creates a new formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format returns nil when there is no final result
func (f *Formatter) Format(agg AggregateResult, query string) *FoodRecord {
	res := agg.Final
	if res == nil {
		return nil
	}

	data := res.Data
	if data == nil {
		data = &providers.FoodData{}
	}

	record := &FoodRecord{
		Name:        strings.TrimSpace(data.Name),
		Brand:       data.Brand,
		Barcode:     data.Barcode,
		ExternalID:  data.ExternalID,
		Provider:    res.Provider,
		Source:      res.Source,
		Confidence:  res.Confidence,
		Ingredients: append([]string(nil), data.Ingredients...),
		Cached:      res.Cached,
	}
	if record.Name == "" {
		record.Name = strings.TrimSpace(query)
	}
	if len(record.Ingredients) == 0 {
		record.Ingredients = []string{strings.TrimSpace(query)}
	}

	raw := make(map[string]any, len(data.Nutriments)+1)
	for k, v := range data.Nutriments {
		raw[k] = v
	}
	if _, ok := raw["serving_size"]; !ok && data.ServingSize != "" {
		raw["serving_size"] = data.ServingSize
	}

	grams := serving.ParseServingGrams(raw)
	record.Nutrition = nutrition.Normalize(raw, grams)

	if text, _ := raw["serving_size"].(string); strings.TrimSpace(text) != "" {
		record.Serving = serving.ParseServingFromText(text)
		record.ServingText = text
	}
	if grams != nil {
		g := *grams
		record.Serving.Grams = &g
	}
	if record.ServingText == "" {
		record.ServingText = strconv.FormatFloat(record.Nutrition.ServingGrams, 'f', -1, 64) + " g"
	}

	return record
}
