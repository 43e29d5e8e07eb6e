package providers

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("  Turkey-Club SANDWICH, 2x ")
	want := []string{"turkey", "club", "sandwich", "2x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}

	if len(Tokenize("  ,, ")) != 0 {
		t.Error("expected no tokens for punctuation-only input")
	}
}

func TestIsBarcode(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"3017620422003", true},
		{" 96385074 ", true},
		{"1234567", false},
		{"123456789012345", false},
		{"3017620422003 nutella", false},
		{"apple", false},
	}

	for _, tt := range tests {
		if got := IsBarcode(tt.query); got != tt.want {
			t.Errorf("IsBarcode(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestMatchConfidence(t *testing.T) {
	tests := []struct {
		query string
		name  string
		want  float64
	}{
		{"club sandwich", "Club Sandwich with Turkey", 1},
		{"club sandwich", "Turkey sandwich", 0.5},
		{"apple", "Banana", 0},
		{"", "anything", 0},
	}

	for _, tt := range tests {
		if got := MatchConfidence(tt.query, tt.name); got != tt.want {
			t.Errorf("MatchConfidence(%q, %q) = %v, want %v", tt.query, tt.name, got, tt.want)
		}
	}
}

func TestSplitIngredients(t *testing.T) {
	tests := []struct {
		name string
		text string
		seps string
		want []string
	}{
		{
			name: "comma separated with sub-ingredients",
			text: "Wheat flour (wheat, niacin), water, salt, yeast.",
			seps: ",",
			want: []string{"Wheat flour", "water", "salt", "yeast"},
		},
		{
			name: "semicolon separated",
			text: "bread; turkey; lettuce;",
			seps: ";",
			want: []string{"bread", "turkey", "lettuce"},
		},
		{
			name: "nested brackets",
			text: "sauce [tomato (organic), basil], cheese",
			seps: ",",
			want: []string{"sauce", "cheese"},
		},
		{
			name: "empty",
			text: "",
			seps: ",",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitIngredients(tt.text, tt.seps)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitIngredients() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
