// Package nutrition converts raw provider nutrient fields into a per-serving
// record with a consistent rounding policy.
package nutrition

import (
	"github.com/upb/food-enrich/internal/shared"
	"github.com/upb/food-enrich/services/serving"
)

// MacroMode records which derivation path produced the per-serving values.
type MacroMode string

const (
	// ModeServingProvider means the provider supplied per-serving calories.
	ModeServingProvider MacroMode = "SERVING_PROVIDER"

	// ModeScaledFromPer100g means per-serving values were scaled from per-100g values.
	ModeScaledFromPer100g MacroMode = "SCALED_FROM_100G"

	// ModePer100gFallback means neither a serving size nor per-serving data was available.
	ModePer100gFallback MacroMode = "PER100G_FALLBACK"
)

// DefaultServingGrams is used when no serving size can be resolved.
const DefaultServingGrams = 100.0

// Plausibility bounds per 100 g, outside of which a value is treated as missing.
const (
	maxKcalPer100g  = 10000.0
	maxGramsPer100g = 100.0
)

type nutrient int

const (
	energy nutrient = iota
	protein
	carbs
	fat
	fiber
	sugar
	sodium
	nutrientCount
)

// nutrientKeys lists accepted key prefixes per nutrient, most specific first.
var nutrientKeys = [nutrientCount][]string{
	energy:  {"energy-kcal"},
	protein: {"proteins", "protein"},
	carbs:   {"carbohydrates", "carbs"},
	fat:     {"fat"},
	fiber:   {"fiber", "fibre"},
	sugar:   {"sugars", "sugar"},
	sodium:  {"sodium"},
}

// NormalizedNutrition is the per-serving nutrient record returned to callers.
// The flat legacy fields always mirror the *_serving values.
type NormalizedNutrition struct {
	MacroMode    MacroMode `json:"macro_mode"`
	ServingGrams float64   `json:"serving_grams"`

	CaloriesPer100g float64 `json:"calories_per_100g"`
	ProteinPer100g  float64 `json:"protein_g_per_100g"`
	CarbsPer100g    float64 `json:"carbs_g_per_100g"`
	FatPer100g      float64 `json:"fat_g_per_100g"`
	FiberPer100g    float64 `json:"fiber_g_per_100g"`
	SugarPer100g    float64 `json:"sugar_g_per_100g"`
	SodiumPer100g   float64 `json:"sodium_mg_per_100g"`

	CaloriesServing float64 `json:"calories_serving"`
	ProteinServing  float64 `json:"protein_g_serving"`
	CarbsServing    float64 `json:"carbs_g_serving"`
	FatServing      float64 `json:"fat_g_serving"`
	FiberServing    float64 `json:"fiber_g_serving"`
	SugarServing    float64 `json:"sugar_g_serving"`
	SodiumServing   float64 `json:"sodium_mg_serving"`

	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	FiberG   float64 `json:"fiber_g"`
	SugarG   float64 `json:"sugar_g"`
	SodiumMg float64 `json:"sodium_mg"`
}

// NormalizeProduct resolves the serving size from raw and normalizes it.
func NormalizeProduct(raw map[string]any) NormalizedNutrition {
	return Normalize(raw, serving.ParseServingGrams(raw))
}

// Normalize builds a NormalizedNutrition from raw provider fields and a resolved
// serving size. The macro mode follows where the calorie value came from; other
// nutrients use their own per-serving value when present and are scaled otherwise.
func Normalize(raw map[string]any, servingGrams *float64) NormalizedNutrition {
	var per100, perServing [nutrientCount]float64
	var has100, hasServing [nutrientCount]bool

	for n := nutrient(0); n < nutrientCount; n++ {
		per100[n], has100[n] = readNutrient(raw, n, "_100g")
		perServing[n], hasServing[n] = readNutrient(raw, n, "_serving")
	}

	grams := 0.0
	if servingGrams != nil && *servingGrams > 0 {
		grams = *servingGrams
	}

	out := NormalizedNutrition{}
	var values [nutrientCount]float64

	switch {
	case hasServing[energy]:
		out.MacroMode = ModeServingProvider
		out.ServingGrams = grams
		for n := nutrient(0); n < nutrientCount; n++ {
			switch {
			case hasServing[n]:
				values[n] = perServing[n]
			case has100[n] && grams > 0:
				values[n] = per100[n] * grams / 100
			}
		}
	case grams > 0:
		out.MacroMode = ModeScaledFromPer100g
		out.ServingGrams = grams
		for n := nutrient(0); n < nutrientCount; n++ {
			switch {
			case hasServing[n]:
				values[n] = perServing[n]
			case has100[n]:
				values[n] = per100[n] * grams / 100
			}
		}
	default:
		out.MacroMode = ModePer100gFallback
		out.ServingGrams = DefaultServingGrams
		for n := nutrient(0); n < nutrientCount; n++ {
			values[n] = per100[n]
		}
	}

	out.ServingGrams = shared.Round(out.ServingGrams, 1)

	out.CaloriesPer100g = roundFor(energy, per100[energy])
	out.ProteinPer100g = roundFor(protein, per100[protein])
	out.CarbsPer100g = roundFor(carbs, per100[carbs])
	out.FatPer100g = roundFor(fat, per100[fat])
	out.FiberPer100g = roundFor(fiber, per100[fiber])
	out.SugarPer100g = roundFor(sugar, per100[sugar])
	out.SodiumPer100g = roundFor(sodium, per100[sodium])

	out.CaloriesServing = roundFor(energy, values[energy])
	out.ProteinServing = roundFor(protein, values[protein])
	out.CarbsServing = roundFor(carbs, values[carbs])
	out.FatServing = roundFor(fat, values[fat])
	out.FiberServing = roundFor(fiber, values[fiber])
	out.SugarServing = roundFor(sugar, values[sugar])
	out.SodiumServing = roundFor(sodium, values[sodium])

	out.mirrorLegacy()
	return out
}

func (n *NormalizedNutrition) mirrorLegacy() {
	n.Calories = n.CaloriesServing
	n.ProteinG = n.ProteinServing
	n.CarbsG = n.CarbsServing
	n.FatG = n.FatServing
	n.FiberG = n.FiberServing
	n.SugarG = n.SugarServing
	n.SodiumMg = n.SodiumServing
}

// readNutrient returns the value for n with the given suffix ("_100g" or "_serving").
// Energy falls back to kJ / 4.184; sodium is converted from grams to milligrams.
func readNutrient(raw map[string]any, n nutrient, suffix string) (float64, bool) {
	for _, prefix := range nutrientKeys[n] {
		if v, ok := shared.ExtractFloat(raw, prefix+suffix); ok {
			return validate(n, suffix, toOutputUnit(n, v))
		}
	}
	if n == energy {
		if v, ok := shared.ExtractFloat(raw, "energy-kj"+suffix); ok {
			return validate(n, suffix, v/serving.KJPerKcal)
		}
	}
	return 0, false
}

func toOutputUnit(n nutrient, v float64) float64 {
	if n == sodium {
		return v * 1000
	}
	return v
}

func validate(n nutrient, suffix string, v float64) (float64, bool) {
	if v < 0 {
		return 0, false
	}
	if suffix != "_100g" {
		return v, true
	}
	switch n {
	case energy:
		if v > maxKcalPer100g {
			return 0, false
		}
	case sodium:
		if v > maxGramsPer100g*1000 {
			return 0, false
		}
	default:
		if v > maxGramsPer100g {
			return 0, false
		}
	}
	return v, true
}

// roundFor applies the rounding policy: energy and sodium to integers,
// everything else to one decimal place.
func roundFor(n nutrient, v float64) float64 {
	if n == energy || n == sodium {
		return shared.Round(v, 0)
	}
	return shared.Round(v, 1)
}
