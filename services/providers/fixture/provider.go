// Package fixture provides deterministic in-memory food providers loaded from
// YAML. It backs local development and tests when no upstream credentials
// are configured.
package fixture

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/upb/food-enrich/services/providers"
)

// Wildcard matches every query
const Wildcard = "*"

//go:embed defaults.yaml
var defaultFixtures []byte

// Entry is one canned response
type Entry struct {
	// Match lists the tokens that must all appear in the query
	Match string `yaml:"match"`

	// Confidence overrides the token-overlap score when set
	Confidence *float64 `yaml:"confidence"`

	// Error makes the provider fail for matching queries
	Error string `yaml:"error"`

	Food providers.FoodData `yaml:"food"`
}

// File is the YAML document layout: provider id → entries
type File map[providers.ProviderID][]Entry

// Provider is an in-memory providers.FoodProvider
type Provider struct {
	id      providers.ProviderID
	entries []Entry
}

// New creates a fixture provider for id
func New(id providers.ProviderID, entries []Entry) *Provider {
	return &Provider{id: id, entries: entries}
}

// ID returns the routing role
func (p *Provider) ID() providers.ProviderID {
	return p.id
}

// Lookup returns the most specific entry whose match tokens are all present in the query
func (p *Provider) Lookup(ctx context.Context, req providers.LookupRequest) (*providers.ProviderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := make(map[string]struct{})
	for _, tok := range providers.Tokenize(req.Query) {
		queryTokens[tok] = struct{}{}
	}
	if len(queryTokens) == 0 {
		return nil, nil
	}

	var (
		best      *Entry
		bestScore = -1
	)
	for i := range p.entries {
		e := &p.entries[i]
		if req.BrandedOnly && p.id == providers.ProviderBranded && e.Food.Brand == "" {
			continue
		}
		score, ok := matchScore(e.Match, queryTokens)
		if ok && score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return nil, nil
	}

	if best.Error != "" {
		return nil, providers.NewProviderError(p.id, "FIXTURE_ERROR", best.Error, 0, false, nil)
	}

	confidence := providers.MatchConfidence(req.Query, best.Match)
	if best.Confidence != nil {
		confidence = *best.Confidence
	}

	food := best.Food
	return providers.NewProviderResult(p.id, confidence, &food).Clone(), nil
}

// matchScore returns the number of match tokens when all of them are in the query
func matchScore(match string, queryTokens map[string]struct{}) (int, bool) {
	if match == Wildcard {
		return 0, true
	}
	tokens := providers.Tokenize(match)
	if len(tokens) == 0 {
		return 0, false
	}
	for _, tok := range tokens {
		if _, ok := queryTokens[tok]; !ok {
			return 0, false
		}
	}
	return len(tokens), true
}

// Parse decodes a fixture document into one provider per id
func Parse(data []byte) (map[providers.ProviderID]*Provider, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if len(file) == 0 {
		return nil, errors.New("fixture document is empty")
	}

	out := make(map[providers.ProviderID]*Provider, len(file))
	for id, entries := range file {
		switch id {
		case providers.ProviderBranded, providers.ProviderGeneric, providers.ProviderMinimal:
		default:
			return nil, fmt.Errorf("unknown provider %q in fixtures", id)
		}
		out[id] = New(id, entries)
	}
	return out, nil
}

// LoadFile reads and parses a fixture file
func LoadFile(path string) (map[providers.ProviderID]*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return Parse(data)
}

// Defaults returns the built-in fixture providers
func Defaults() map[providers.ProviderID]*Provider {
	out, err := Parse(defaultFixtures)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded fixtures: %v", err))
	}
	return out
}

// Register adds the providers to the registry builder in a stable order
func Register(builder *providers.RegistryBuilder, set map[providers.ProviderID]*Provider) *providers.RegistryBuilder {
	ids := make([]providers.ProviderID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		builder.WithProvider(set[id])
	}
	return builder
}
