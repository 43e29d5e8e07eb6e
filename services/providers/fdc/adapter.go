// Package fdc implements the minimal-ingredient provider on top of the USDA
// FoodData Central search API.
package fdc

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/upb/food-enrich/services/providers"
)

const defaultBaseURL = "https://api.nal.usda.gov/fdc"

// dataTypes leaves out Branded; those come from the branded provider
var dataTypes = []string{"Foundation", "SR Legacy", "Survey (FNDDS)"}

// FDC nutrient numbers
const (
	nutrientProtein    = 1003
	nutrientFat        = 1004
	nutrientCarbs      = 1005
	nutrientEnergyKcal = 1008
	nutrientEnergyKJ   = 1062
	nutrientFiber      = 1079
	nutrientSodium     = 1093
	nutrientSugars     = 2000
	nutrientAtwater    = 2047
)

// Adapter implements providers.FoodProvider for FoodData Central
type Adapter struct {
	config providers.ProviderConfig
	client *providers.HTTPClient
}

// NewAdapter creates a new FoodData Central adapter. APIKey is required.
func NewAdapter(config providers.ProviderConfig) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, errors.New("fdc: api key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.PageSize <= 0 {
		config.PageSize = providers.DefaultProviderConfig().PageSize
	}

	return &Adapter{
		config: config,
		client: providers.NewHTTPClient(providers.ProviderMinimal, config),
	}, nil
}

// ID returns the routing role
func (a *Adapter) ID() providers.ProviderID {
	return providers.ProviderMinimal
}

// Lookup searches FoodData Central reference foods
func (a *Adapter) Lookup(ctx context.Context, req providers.LookupRequest) (*providers.ProviderResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("api_key", a.config.APIKey)
	params.Set("query", query)
	params.Set("pageSize", strconv.Itoa(a.config.PageSize))
	params.Set("dataType", strings.Join(dataTypes, ","))

	var resp searchResponse
	if err := a.client.GetJSON(ctx, a.config.BaseURL+"/v1/foods/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	var (
		best      *searchFood
		bestScore float64
	)
	for i := range resp.Foods {
		f := &resp.Foods[i]
		if strings.TrimSpace(f.Description) == "" {
			continue
		}
		score := providers.MatchConfidence(query, f.Description)
		if best == nil || score > bestScore {
			best, bestScore = f, score
		}
	}
	if best == nil {
		return nil, nil
	}

	return providers.NewProviderResult(a.ID(), bestScore, best.toFoodData()), nil
}

type searchResponse struct {
	TotalHits int          `json:"totalHits"`
	Foods     []searchFood `json:"foods"`
}

type searchFood struct {
	FdcID           int            `json:"fdcId"`
	Description     string         `json:"description"`
	DataType        string         `json:"dataType"`
	BrandOwner      string         `json:"brandOwner"`
	GTINUPC         string         `json:"gtinUpc"`
	Ingredients     string         `json:"ingredients"`
	ServingSize     float64        `json:"servingSize"`
	ServingSizeUnit string         `json:"servingSizeUnit"`
	FoodNutrients   []foodNutrient `json:"foodNutrients"`
}

type foodNutrient struct {
	NutrientID     int     `json:"nutrientId"`
	NutrientNumber string  `json:"nutrientNumber"`
	NutrientName   string  `json:"nutrientName"`
	UnitName       string  `json:"unitName"`
	Value          float64 `json:"value"`
}

func (f *searchFood) toFoodData() *providers.FoodData {
	nutriments := make(map[string]any)
	for _, n := range f.FoodNutrients {
		switch n.NutrientID {
		case nutrientEnergyKcal:
			nutriments["energy-kcal_100g"] = n.Value
		case nutrientAtwater:
			if _, ok := nutriments["energy-kcal_100g"]; !ok {
				nutriments["energy-kcal_100g"] = n.Value
			}
		case nutrientEnergyKJ:
			nutriments["energy-kj_100g"] = n.Value
		case nutrientProtein:
			nutriments["proteins_100g"] = n.Value
		case nutrientFat:
			nutriments["fat_100g"] = n.Value
		case nutrientCarbs:
			nutriments["carbohydrates_100g"] = n.Value
		case nutrientFiber:
			nutriments["fiber_100g"] = n.Value
		case nutrientSugars:
			nutriments["sugars_100g"] = n.Value
		case nutrientSodium:
			// reported in mg
			nutriments["sodium_100g"] = n.Value / 1000
		}
	}

	switch strings.ToLower(f.ServingSizeUnit) {
	case "g", "grm":
		if f.ServingSize > 0 {
			nutriments["serving_size_g"] = f.ServingSize
		}
	case "ml", "mlt":
		if f.ServingSize > 0 {
			nutriments["serving_size"] = strconv.FormatFloat(f.ServingSize, 'f', -1, 64) + " ml"
		}
	}

	ingredients := providers.SplitIngredients(f.Ingredients, ",")
	if len(ingredients) == 0 {
		ingredients = []string{f.Description}
	}

	return &providers.FoodData{
		ExternalID:  strconv.Itoa(f.FdcID),
		Name:        f.Description,
		Brand:       f.BrandOwner,
		Barcode:     f.GTINUPC,
		Ingredients: ingredients,
		Nutriments:  nutriments,
	}
}
