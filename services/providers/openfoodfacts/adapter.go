// Package openfoodfacts implements the branded-food provider on top of the
// Open Food Facts search and product APIs.
package openfoodfacts

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/upb/food-enrich/services/providers"
)

const (
	defaultBaseURL = "https://world.openfoodfacts.org"

	searchFields = "code,product_name,product_name_en,generic_name,brands,ingredients,ingredients_text,serving_size,serving_quantity,nutriments"
)

// Adapter implements providers.FoodProvider for Open Food Facts
type Adapter struct {
	config providers.ProviderConfig
	client *providers.HTTPClient
}

// NewAdapter creates a new Open Food Facts adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.PageSize <= 0 {
		config.PageSize = providers.DefaultProviderConfig().PageSize
	}

	return &Adapter{
		config: config,
		client: providers.NewHTTPClient(providers.ProviderBranded, config),
	}
}

// ID returns the routing role
func (a *Adapter) ID() providers.ProviderID {
	return providers.ProviderBranded
}

// Lookup searches Open Food Facts. Barcode queries from a scan go straight to
// the product endpoint.
func (a *Adapter) Lookup(ctx context.Context, req providers.LookupRequest) (*providers.ProviderResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, nil
	}

	if providers.IsBarcode(query) {
		return a.lookupBarcode(ctx, query)
	}

	params := url.Values{}
	params.Set("search_terms", query)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(a.config.PageSize))
	params.Set("fields", searchFields)

	var resp searchResponse
	if err := a.client.GetJSON(ctx, a.config.BaseURL+"/cgi/search.pl?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	var (
		best      *Product
		bestScore float64
	)
	for i := range resp.Products {
		p := &resp.Products[i]
		if p.Name() == "" {
			continue
		}
		if req.BrandedOnly && strings.TrimSpace(p.Brands) == "" {
			continue
		}
		score := providers.MatchConfidence(query, p.Name()+" "+p.Brands)
		if best == nil || score > bestScore ||
			(score == bestScore && len(p.IngredientList()) > len(best.IngredientList())) {
			best, bestScore = p, score
		}
	}

	if best == nil {
		return nil, nil
	}

	return providers.NewProviderResult(a.ID(), bestScore, best.ToFoodData()), nil
}

func (a *Adapter) lookupBarcode(ctx context.Context, code string) (*providers.ProviderResult, error) {
	var resp productResponse
	err := a.client.GetJSON(ctx, a.config.BaseURL+"/api/v2/product/"+code+".json?fields="+searchFields, nil, &resp)
	if err != nil {
		if providers.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if resp.Status != 1 || resp.Product == nil {
		return nil, nil
	}

	return providers.NewProviderResult(a.ID(), 1, resp.Product.ToFoodData()), nil
}
