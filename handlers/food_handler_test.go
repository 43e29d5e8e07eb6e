package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/food-enrich/services/nutrition"
	"github.com/upb/food-enrich/services/serving"
)

func TestHandleParseServing(t *testing.T) {
	handler := NewFoodHandler(zap.NewNop())

	tests := []struct {
		name      string
		text      string
		wantGrams *float64
	}{
		{name: "parenthesized grams win", text: "2 tbsp (32 g)", wantGrams: ptr(32.0)},
		{name: "ounces", text: "1 oz", wantGrams: ptr(28.35)},
		{name: "per 100 g", text: "per 100g", wantGrams: ptr(100.0)},
		{name: "no quantity", text: "one slice", wantGrams: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/serving/parse?text="+url.QueryEscape(tt.text), nil)
			w := httptest.NewRecorder()
			handler.HandleParseServing(w, req)

			require.Equal(t, http.StatusOK, w.Code)

			var envelope struct {
				Data serving.Info `json:"data"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
			require.NotNil(t, envelope.Data.Text)
			assert.Equal(t, tt.text, *envelope.Data.Text)
			if tt.wantGrams == nil {
				assert.Nil(t, envelope.Data.Grams)
				return
			}
			require.NotNil(t, envelope.Data.Grams)
			assert.InDelta(t, *tt.wantGrams, *envelope.Data.Grams, 0.01)
		})
	}

	t.Run("missing text", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.HandleParseServing(w, httptest.NewRequest(http.MethodGet, "/api/v1/serving/parse?text=%20", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "text is required")
	})
}

func TestHandleNormalize(t *testing.T) {
	handler := NewFoodHandler(zap.NewNop())

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/nutrition/normalize", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.HandleNormalize(w, req)
		return w
	}

	decode := func(t *testing.T, w *httptest.ResponseRecorder) nutrition.NormalizedNutrition {
		t.Helper()
		var envelope struct {
			Data nutrition.NormalizedNutrition `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
		return envelope.Data
	}

	t.Run("explicit serving grams", func(t *testing.T) {
		w := post(`{"nutriments":{"energy-kcal_100g":250,"proteins_100g":10,"sodium_100g":0.4},"serving_grams":40}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		got := decode(t, w)
		assert.Equal(t, nutrition.ModeScaledFromPer100g, got.MacroMode)
		assert.Equal(t, 40.0, got.ServingGrams)
		assert.Equal(t, 100.0, got.CaloriesServing)
		assert.Equal(t, 4.0, got.ProteinServing)
		assert.Equal(t, 160.0, got.SodiumServing)
		assert.Equal(t, got.CaloriesServing, got.Calories)
	})

	t.Run("serving size read from nutriments", func(t *testing.T) {
		w := post(`{"nutriments":{"energy-kcal_100g":200,"serving_size":"1 cup (50 g)"}}`)
		require.Equal(t, http.StatusOK, w.Code)

		got := decode(t, w)
		assert.Equal(t, nutrition.ModeScaledFromPer100g, got.MacroMode)
		assert.Equal(t, 50.0, got.ServingGrams)
		assert.Equal(t, 100.0, got.CaloriesServing)
	})

	t.Run("per 100 g fallback", func(t *testing.T) {
		w := post(`{"nutriments":{"energy-kcal_100g":52}}`)
		require.Equal(t, http.StatusOK, w.Code)

		got := decode(t, w)
		assert.Equal(t, nutrition.ModePer100gFallback, got.MacroMode)
		assert.Equal(t, nutrition.DefaultServingGrams, got.ServingGrams)
		assert.Equal(t, 52.0, got.Calories)
	})

	badRequests := map[string]string{
		"missing nutriments": `{}`,
		"empty nutriments":   `{"nutriments":{}}`,
		"negative grams":     `{"nutriments":{"energy-kcal_100g":52},"serving_grams":-1}`,
		"malformed":          `{"nutriments":`,
	}
	for name, body := range badRequests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, post(body).Code)
		})
	}
}

func ptr(v float64) *float64 { return &v }
