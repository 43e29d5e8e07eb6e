package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/food-enrich/middleware"
	"github.com/upb/food-enrich/services/enrichment"
	"github.com/upb/food-enrich/services/nutrition"
	"github.com/upb/food-enrich/services/routing"
	"github.com/upb/food-enrich/services/serving"
)

// isolateEnv keeps the host environment from reaching config.New
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "DB_HOST", "OFF_ENABLED", "EDAMAM_APP_ID", "EDAMAM_APP_KEY",
		"FDC_API_KEY", "FEATURE_FLAGS_FILE", "PROVIDER_FIXTURES_FILE",
		"AUTH_JWT_SECRET", "AUTH_JWT_ISSUER", "AUTH_JWT_AUDIENCE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("ENVIRONMENT", "test")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLookupCmd(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "", "lookup", "--fixtures", "--context", "scan", "club", "sandwich")
	require.NoError(t, err)

	var resp enrichment.EnrichResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "club sandwich", resp.Query)
	assert.Equal(t, routing.DecisionGate, resp.Decision)
	assert.Equal(t, routing.ReasonSandwichBranded, resp.WhyPicked)
}

func TestLookupCmd_InvalidContext(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "", "lookup", "--fixtures", "--context", "voice", "apple")
	assert.Error(t, err)
}

func TestServingCmd(t *testing.T) {
	out, err := execute(t, "", "serving", "1", "cup", "(240", "ml)")
	require.NoError(t, err)

	var info serving.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.NotNil(t, info.Grams)
	assert.Equal(t, 240.0, *info.Grams)
}

func TestNormalizeCmd(t *testing.T) {
	t.Run("stdin with grams", func(t *testing.T) {
		out, err := execute(t, `{"energy-kcal_100g":200,"proteins_100g":10}`, "normalize", "--grams", "50")
		require.NoError(t, err)

		var result nutrition.NormalizedNutrition
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, 50.0, result.ServingGrams)
		assert.Equal(t, 100.0, result.CaloriesServing)
		assert.Equal(t, 5.0, result.ProteinServing)
	})

	t.Run("file without grams", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nutriments.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"energy-kcal_100g":52}`), 0o600))

		out, err := execute(t, "", "normalize", "--file", path)
		require.NoError(t, err)

		var result nutrition.NormalizedNutrition
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, nutrition.ModePer100gFallback, result.MacroMode)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := execute(t, `{}`, "normalize")
		assert.Error(t, err)

		_, err = execute(t, `not json`, "normalize")
		assert.Error(t, err)

		_, err = execute(t, `{"energy-kcal_100g":52}`, "normalize", "--grams", "0")
		assert.Error(t, err)
	})
}

func TestTokenCmd(t *testing.T) {
	isolateEnv(t)

	t.Run("requires a secret", func(t *testing.T) {
		_, err := execute(t, "", "token", "--subject", "ops")
		assert.ErrorIs(t, err, middleware.ErrMissingSecret)
	})

	t.Run("requires a subject", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "s3cret")
		_, err := execute(t, "", "token")
		assert.Error(t, err)
	})

	t.Run("token validates against the same secret", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "s3cret")
		t.Setenv("AUTH_JWT_ISSUER", "food-enrich")

		out, err := execute(t, "", "token", "--subject", "ops")
		require.NoError(t, err)

		validator, err := middleware.NewJWTValidator(middleware.JWTConfig{Secret: "s3cret", Issuer: "food-enrich"})
		require.NoError(t, err)

		claims, err := validator.ValidateToken(context.Background(), strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, "ops", claims.Subject)
		assert.Equal(t, "food-enrich", claims.Issuer)
	})
}
