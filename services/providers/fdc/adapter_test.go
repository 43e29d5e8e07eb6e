package fdc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/upb/food-enrich/services/providers"
)

const searchBody = `{
  "totalHits": 2,
  "foods": [
    {
      "fdcId": 1750340,
      "description": "Apples, fuji, with skin, raw",
      "dataType": "Foundation",
      "foodNutrients": [
        {"nutrientId": 1003, "unitName": "G", "value": 0.15},
        {"nutrientId": 1005, "unitName": "G", "value": 15.7},
        {"nutrientId": 2047, "unitName": "KCAL", "value": 63},
        {"nutrientId": 1093, "unitName": "MG", "value": 1}
      ]
    },
    {
      "fdcId": 2,
      "description": "Pie, apple",
      "dataType": "Survey (FNDDS)",
      "ingredients": "apples, flour, sugar, butter",
      "servingSize": 125,
      "servingSizeUnit": "GRM",
      "foodNutrients": [{"nutrientId": 1008, "unitName": "KCAL", "value": 265}]
    }
  ]
}`

func TestNewAdapter(t *testing.T) {
	if _, err := NewAdapter(providers.ProviderConfig{}); err == nil {
		t.Error("expected error without api key")
	}

	adapter, err := NewAdapter(providers.ProviderConfig{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if adapter.ID() != providers.ProviderMinimal {
		t.Errorf("ID() = %s, want minimal", adapter.ID())
	}
}

func TestAdapter_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/foods/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if dt := r.URL.Query().Get("dataType"); strings.Contains(dt, "Branded") {
			t.Errorf("dataType should exclude Branded, got %q", dt)
		}
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	adapter, err := NewAdapter(providers.ProviderConfig{APIKey: "key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	res, err := adapter.Lookup(context.Background(), providers.LookupRequest{Query: "fuji apple"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if res.Data.ExternalID != "1750340" {
		t.Errorf("picked %s, want 1750340", res.Data.ExternalID)
	}
	if res.IngredientsLen != 1 {
		t.Errorf("IngredientsLen = %d, want 1", res.IngredientsLen)
	}
	if res.Source != providers.SourceMinimal {
		t.Errorf("Source = %s", res.Source)
	}
	if got := res.Data.Nutriments["energy-kcal_100g"]; got != 63.0 {
		t.Errorf("energy-kcal_100g = %v, want 63", got)
	}
	if got := res.Data.Nutriments["sodium_100g"]; got != 0.001 {
		t.Errorf("sodium_100g = %v, want 0.001", got)
	}
}

func TestAdapter_LookupWithIngredients(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	adapter, _ := NewAdapter(providers.ProviderConfig{APIKey: "key", BaseURL: server.URL})

	res, err := adapter.Lookup(context.Background(), providers.LookupRequest{Query: "apple pie"})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if res.IngredientsLen != 4 {
		t.Errorf("IngredientsLen = %d, want 4", res.IngredientsLen)
	}
	if got := res.Data.Nutriments["serving_size_g"]; got != 125.0 {
		t.Errorf("serving_size_g = %v, want 125", got)
	}
}

func TestAdapter_LookupNoFoods(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalHits":0,"foods":[]}`))
	}))
	defer server.Close()

	adapter, _ := NewAdapter(providers.ProviderConfig{APIKey: "key", BaseURL: server.URL})

	res, err := adapter.Lookup(context.Background(), providers.LookupRequest{Query: "unobtainium"})
	if err != nil || res != nil {
		t.Errorf("Lookup() = %v, %v; want nil, nil", res, err)
	}
}
