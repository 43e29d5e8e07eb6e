package openfoodfacts

import (
	"strings"

	"github.com/upb/food-enrich/internal/shared"
	"github.com/upb/food-enrich/services/providers"
)

type searchResponse struct {
	Count    int       `json:"count"`
	Products []Product `json:"products"`
}

type productResponse struct {
	Status  int      `json:"status"`
	Product *Product `json:"product"`
}

// Product is the subset of an Open Food Facts product record the adapter reads
type Product struct {
	Code            string         `json:"code"`
	ProductName     string         `json:"product_name"`
	ProductNameEn   string         `json:"product_name_en"`
	GenericName     string         `json:"generic_name"`
	Brands          string         `json:"brands"`
	Ingredients     []Ingredient   `json:"ingredients"`
	IngredientsText string         `json:"ingredients_text"`
	ServingSize     string         `json:"serving_size"`
	ServingQuantity any            `json:"serving_quantity"`
	Nutriments      map[string]any `json:"nutriments"`
}

// Ingredient is one parsed ingredient entry
type Ingredient struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Name returns the best available product name using the fallback order:
// product_name → product_name_en → generic_name → "".
func (p *Product) Name() string {
	for _, name := range []string{p.ProductName, p.ProductNameEn, p.GenericName} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}

// IngredientList prefers the structured ingredient array and falls back to
// splitting ingredients_text.
func (p *Product) IngredientList() []string {
	if len(p.Ingredients) > 0 {
		out := make([]string, 0, len(p.Ingredients))
		for _, ing := range p.Ingredients {
			if text := strings.TrimSpace(ing.Text); text != "" {
				out = append(out, text)
			}
		}
		return out
	}
	return providers.SplitIngredients(p.IngredientsText, ",;")
}

// ToFoodData converts the product into the provider payload
func (p *Product) ToFoodData() *providers.FoodData {
	nutriments := make(map[string]any, len(p.Nutriments)+2)
	for k, v := range p.Nutriments {
		nutriments[k] = v
	}
	if p.ServingSize != "" {
		nutriments["serving_size"] = p.ServingSize
	}
	if grams, ok := shared.ToFloat(p.ServingQuantity); ok && grams > 0 {
		nutriments["serving_size_g"] = grams
	}

	return &providers.FoodData{
		ExternalID:  p.Code,
		Name:        p.Name(),
		Brand:       firstBrand(p.Brands),
		Barcode:     p.Code,
		Ingredients: p.IngredientList(),
		ServingSize: p.ServingSize,
		Nutriments:  nutriments,
	}
}

func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}
