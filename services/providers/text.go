package providers

import (
	"regexp"
	"strings"
	"unicode"
)

// barcodeRegex matches EAN-8 through GTIN-14 product codes
var barcodeRegex = regexp.MustCompile(`^\d{8,14}$`)

// IsBarcode reports whether query is a bare retail product code
func IsBarcode(query string) bool {
	return barcodeRegex.MatchString(strings.TrimSpace(query))
}

// Tokenize lowercases s and splits it into letter/digit runs
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// MatchConfidence scores how well a product name covers the query tokens, in [0,1]
func MatchConfidence(query, name string) float64 {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	nameTokens := make(map[string]struct{})
	for _, tok := range Tokenize(name) {
		nameTokens[tok] = struct{}{}
	}

	matched := 0
	for _, tok := range queryTokens {
		if _, ok := nameTokens[tok]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(queryTokens))
}

// SplitIngredients splits an ingredient label on any of seps, dropping
// bracketed sub-ingredient lists and empty entries.
func SplitIngredients(text string, seps string) []string {
	text = stripBracketed(text)
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), ".*_")
		if p != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// stripBracketed removes "(...)" and "[...]" groups, including nested ones
func stripBracketed(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
