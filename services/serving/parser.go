// Package serving extracts gram quantities from free-form serving descriptions
// such as "2 tbsp (32 g)", "1 oz" or "per 100g".
package serving

import (
	"regexp"
	"strings"

	"github.com/upb/food-enrich/internal/shared"
)

const (
	// GramsPerOunce is the avoirdupois ounce.
	GramsPerOunce = 28.349523125

	// GramsPerMilliliter assumes the density of water for every food.
	GramsPerMilliliter = 1.0

	// GramsPerFluidOunce is a US fluid ounce of volume, weighed like any other ml.
	GramsPerFluidOunce = 29.5735295625 * GramsPerMilliliter

	// KJPerKcal converts kilojoules to kilocalories.
	KJPerKcal = 4.184
)

var (
	decimalCommaRegex = regexp.MustCompile(`(\d),(\d)`)
	per100Regex       = regexp.MustCompile(`\bper\s*100\s*(?:g|gr|grams?|ml)?\b`)
	parenRegex        = regexp.MustCompile(`\(([^()]*)\)`)
	quantityRegex     = regexp.MustCompile(`(\d+(?:\.\d+)?|\.\d+)\s*(kilograms?|kg|milligrams?|mg|grams?|gr|g|fl\.?\s*oz|fluid\s+ounces?|ounces?|oz|milliliters?|millilitres?|ml|liters?|litres?|l)\b`)
)

// unitGrams maps a recognized unit token to its gram factor.
var unitGrams = map[string]float64{
	"g":           1,
	"gr":          1,
	"gram":        1,
	"grams":       1,
	"kg":          1000,
	"kilogram":    1000,
	"kilograms":   1000,
	"mg":          0.001,
	"milligram":   0.001,
	"milligrams":  0.001,
	"oz":          GramsPerOunce,
	"ounce":       GramsPerOunce,
	"ounces":      GramsPerOunce,
	"fl oz":       GramsPerFluidOunce,
	"ml":          GramsPerMilliliter,
	"milliliter":  GramsPerMilliliter,
	"milliliters": GramsPerMilliliter,
	"millilitre":  GramsPerMilliliter,
	"millilitres": GramsPerMilliliter,
	"l":           1000 * GramsPerMilliliter,
	"liter":       1000 * GramsPerMilliliter,
	"liters":      1000 * GramsPerMilliliter,
	"litre":       1000 * GramsPerMilliliter,
	"litres":      1000 * GramsPerMilliliter,
}

// Info is the result of parsing a serving description.
// Grams is nil when no quantity could be recovered. Text is nil only for empty input.
type Info struct {
	Grams *float64 `json:"grams"`
	Text  *string  `json:"text,omitempty"`
}

// ParseServingFromText extracts a gram amount from a serving string.
// A parenthesized quantity takes precedence over a leading one, so
// "2 tbsp (32 g)" yields 32.
func ParseServingFromText(text string) Info {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Info{}
	}

	info := Info{Text: &text}
	normalized := decimalCommaRegex.ReplaceAllString(strings.ToLower(trimmed), "$1.$2")

	if per100Regex.MatchString(normalized) {
		grams := 100.0
		info.Grams = &grams
		return info
	}

	// last parenthesized group with a recognizable quantity wins
	groups := parenRegex.FindAllStringSubmatch(normalized, -1)
	for i := len(groups) - 1; i >= 0; i-- {
		if grams, ok := firstQuantity(groups[i][1]); ok {
			info.Grams = &grams
			return info
		}
	}

	if grams, ok := firstQuantity(normalized); ok {
		info.Grams = &grams
	}
	return info
}

func firstQuantity(s string) (float64, bool) {
	m := quantityRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	amount, ok := shared.ToFloat(m[1])
	if !ok {
		return 0, false
	}
	unit := m[2]
	if strings.HasPrefix(unit, "fl") {
		unit = "fl oz"
	}
	factor, ok := unitGrams[unit]
	if !ok {
		return 0, false
	}
	grams := amount * factor
	if grams <= 0 {
		return 0, false
	}
	return grams, true
}

var (
	numericServingKeys = []string{"serving_weight_grams", "serving_size_g", "serving_grams"}
	textServingKeys    = []string{"serving_size", "serving_text", "serving"}
)

// ParseServingGrams resolves a serving size in grams from a raw provider record.
// Direct numeric fields win, then text fields, then a back-calculation from
// per-serving and per-100g calories. Returns nil when nothing yields a positive value.
func ParseServingGrams(raw map[string]any) *float64 {
	if raw == nil {
		return nil
	}

	for _, key := range numericServingKeys {
		if v, ok := shared.ExtractFloat(raw, key); ok && v > 0 {
			return &v
		}
	}

	for _, key := range textServingKeys {
		s := shared.ExtractString(raw, key)
		if s == "" {
			continue
		}
		if info := ParseServingFromText(s); info.Grams != nil {
			return info.Grams
		}
	}

	kcalServing, okServing := energyKcal(raw, "_serving")
	kcal100g, ok100g := energyKcal(raw, "_100g")
	if okServing && ok100g && kcalServing > 0 && kcal100g > 0 {
		grams := 100 * (kcalServing / kcal100g)
		return &grams
	}

	return nil
}

// energyKcal reads energy-kcal<suffix>, falling back to energy-kj<suffix> / 4.184.
func energyKcal(raw map[string]any, suffix string) (float64, bool) {
	if v, ok := shared.ExtractFloat(raw, "energy-kcal"+suffix); ok {
		return v, true
	}
	if v, ok := shared.ExtractFloat(raw, "energy-kj"+suffix); ok {
		return v / KJPerKcal, true
	}
	return 0, false
}
