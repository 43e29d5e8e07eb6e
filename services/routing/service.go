package routing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/food-enrich/services/providers"
)

// Decision tags how the chosen result was reached
type Decision string

const (
	DecisionGate      Decision = "gate"
	DecisionScore     Decision = "score"
	DecisionFallback  Decision = "fallback"
	DecisionGuard     Decision = "guard"
	DecisionNoResults Decision = "no_results"
)

// Ingredient-count thresholds
const (
	SandwichGateMinIngredients = 5
	AcceptMinIngredients       = 2
	WeakMaxIngredients         = 1
)

// Reason codes reported in RouterResult.WhyPicked
const (
	ReasonEmptyQuery       = "empty-query"
	ReasonBarcodeBranded   = "barcode-branded"
	ReasonSingleWordGen    = "single-word-generic"
	ReasonSingleWordMin    = "single-word-minimal"
	ReasonSandwichBranded  = "sandwich-branded"
	ReasonSandwichGeneric  = "sandwich-generic"
	ReasonSandwichMinimal  = "sandwich-minimal"
	ReasonGenericRich      = "generic-rich"
	ReasonBrandedRich      = "branded-rich"
	ReasonMinimalFallback  = "minimal-fallback"
	ReasonMinimalWeak      = "minimal-weak"
	ReasonBestTried        = "best-tried"
	ReasonNoCandidate      = "no-candidate"
	ReasonWeakOnlyOption   = "weak-only-option"
	ReasonGuardReplacedFmt = "guard-replaced:%s"
)

var sandwichKeywords = map[string]struct{}{
	"club":     {},
	"sandwich": {},
	"sub":      {},
	"wrap":     {},
	"burger":   {},
	"torta":    {},
	"hoagie":   {},
}

// Flags are the feature switches consulted on every routing call
type Flags struct {
	// SandwichLock enables the branded-first sandwich gate
	SandwichLock bool `yaml:"sandwich_lock" json:"sandwich_lock"`

	// SafeMode disables the sandwich gate regardless of SandwichLock
	SafeMode bool `yaml:"safe_mode" json:"safe_mode"`

	// BrandedCallCap is the maximum number of branded calls per query
	BrandedCallCap int `yaml:"branded_call_cap" json:"branded_call_cap"`

	// Diagnostics logs every provider call at info level
	Diagnostics bool `yaml:"diagnostics" json:"diagnostics"`

	// ProviderTimeout bounds each provider call; zero means no per-call deadline
	ProviderTimeout time.Duration `yaml:"provider_timeout" json:"provider_timeout"`
}

// DefaultFlags returns the production defaults
func DefaultFlags() Flags {
	return Flags{
		SandwichLock:    true,
		SafeMode:        false,
		BrandedCallCap:  1,
		Diagnostics:     false,
		ProviderTimeout: 3 * time.Second,
	}
}

// AttemptStats summarizes the calls made to one provider during a lookup
type AttemptStats struct {
	Calls              int `json:"calls"`
	BestIngredientsLen int `json:"best_ingredients_len"`
	Errors             int `json:"errors"`
}

// RouterResult is the outcome of a routing call. Tried only contains providers
// that were actually invoked; Candidates holds every non-empty result in call order.
type RouterResult struct {
	Chosen     *providers.ProviderResult             `json:"chosen"`
	Tried      map[providers.ProviderID]AttemptStats `json:"tried"`
	Decision   Decision                              `json:"decision"`
	WhyPicked  string                                `json:"why_picked"`
	TimeMs     int64                                 `json:"time_ms"`
	Candidates []*providers.ProviderResult           `json:"candidates,omitempty"`
}

// RoutingService picks a provider result for a free-text food query
type RoutingService struct {
	registry *providers.Registry
	flags    Flags
	logger   *zap.Logger
}

// NewRoutingService creates a new routing service
func NewRoutingService(registry *providers.Registry, flags Flags, logger *zap.Logger) *RoutingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{
		registry: registry,
		flags:    flags,
		logger:   logger,
	}
}

// Flags returns the flags the service was built with
func (s *RoutingService) Flags() Flags {
	return s.flags
}

// IsSandwichQuery reports whether any query token is a sandwich keyword
func IsSandwichQuery(tokens []string) bool {
	for _, tok := range tokens {
		if _, ok := sandwichKeywords[tok]; ok {
			return true
		}
	}
	return false
}

// RouteEnrichment runs the provider decision tree for query. It never fails:
// provider errors, panics and timeouts count as "no candidate".
func (s *RoutingService) RouteEnrichment(ctx context.Context, query string, lookupCtx providers.LookupContext) *RouterResult {
	start := time.Now()

	run := &routeRun{
		svc:     s,
		ctx:     ctx,
		query:   query,
		context: lookupCtx,
		result: &RouterResult{
			Tried: make(map[providers.ProviderID]AttemptStats),
		},
	}

	tokens := providers.Tokenize(query)
	switch {
	case len(tokens) == 0:
		run.result.Decision = DecisionFallback
		run.result.WhyPicked = ReasonEmptyQuery
	case lookupCtx == providers.ContextScan && providers.IsBarcode(query):
		run.barcode()
	case len(tokens) == 1:
		run.singleWord()
	case IsSandwichQuery(tokens) && s.flags.SandwichLock && !s.flags.SafeMode:
		run.sandwich()
	default:
		run.multiWord()
	}

	run.applyGuard()

	run.result.TimeMs = time.Since(start).Milliseconds()

	s.logger.Debug("routing completed",
		zap.String("query", query),
		zap.String("decision", string(run.result.Decision)),
		zap.String("why_picked", run.result.WhyPicked),
		zap.Int("candidates", len(run.result.Candidates)),
		zap.Int64("time_ms", run.result.TimeMs),
	)

	return run.result
}

// routeRun holds the per-query state of one routing call
type routeRun struct {
	svc          *RoutingService
	ctx          context.Context
	query        string
	context      providers.LookupContext
	brandedCalls int
	result       *RouterResult
}

func (r *routeRun) choose(res *providers.ProviderResult, decision Decision, why string) {
	r.result.Chosen = res
	r.result.Decision = decision
	r.result.WhyPicked = why
}

func (r *routeRun) singleWord() {
	if res := r.call(providers.ProviderGeneric, false); res != nil {
		r.choose(res, DecisionFallback, ReasonSingleWordGen)
		return
	}
	if res := r.call(providers.ProviderMinimal, false); res != nil {
		r.choose(res, DecisionFallback, ReasonSingleWordMin)
		return
	}
	r.choose(nil, DecisionFallback, ReasonNoCandidate)
}

// barcode sends a scanned product code to the branded provider, which is
// the only one keyed by code. A miss falls through to the single-word path.
func (r *routeRun) barcode() {
	if res := r.call(providers.ProviderBranded, false); res != nil {
		r.choose(res, DecisionGate, ReasonBarcodeBranded)
		return
	}
	r.singleWord()
}

func (r *routeRun) sandwich() {
	if res := r.call(providers.ProviderBranded, true); atLeast(res, SandwichGateMinIngredients) {
		r.choose(res, DecisionGate, ReasonSandwichBranded)
		return
	}
	if res := r.call(providers.ProviderGeneric, false); atLeast(res, SandwichGateMinIngredients) {
		r.choose(res, DecisionGate, ReasonSandwichGeneric)
		return
	}
	minimal := r.call(providers.ProviderMinimal, false)
	if atLeast(minimal, AcceptMinIngredients) {
		r.choose(minimal, DecisionFallback, ReasonSandwichMinimal)
		return
	}
	r.lastResort(minimal)
}

func (r *routeRun) multiWord() {
	if res := r.call(providers.ProviderGeneric, false); atLeast(res, AcceptMinIngredients) {
		r.choose(res, DecisionScore, ReasonGenericRich)
		return
	}
	if res := r.call(providers.ProviderBranded, false); atLeast(res, AcceptMinIngredients) {
		r.choose(res, DecisionScore, ReasonBrandedRich)
		return
	}
	minimal := r.call(providers.ProviderMinimal, false)
	if atLeast(minimal, AcceptMinIngredients) {
		r.choose(minimal, DecisionFallback, ReasonMinimalFallback)
		return
	}
	r.lastResort(minimal)
}

// lastResort keeps a weak minimal result if there is one, otherwise the
// richest candidate that clears the general threshold.
func (r *routeRun) lastResort(minimal *providers.ProviderResult) {
	if minimal != nil {
		r.choose(minimal, DecisionFallback, ReasonMinimalWeak)
		return
	}
	if best := richest(r.result.Candidates, nil, AcceptMinIngredients); best != nil {
		r.choose(best, DecisionFallback, ReasonBestTried)
		return
	}
	r.choose(nil, DecisionFallback, ReasonNoCandidate)
}

// applyGuard replaces a weak minimal result with a richer tried candidate
func (r *routeRun) applyGuard() {
	chosen := r.result.Chosen
	if !IsWeakMinimal(chosen) {
		return
	}
	if alt := richest(r.result.Candidates, chosen, AcceptMinIngredients); alt != nil {
		r.choose(alt, DecisionGuard, fmt.Sprintf(ReasonGuardReplacedFmt, alt.Provider))
		return
	}
	r.result.WhyPicked = ReasonWeakOnlyOption
}

// call invokes one provider and records it in Tried. It returns nil for a
// missing provider, an exhausted branded cap, an error or an empty result.
func (r *routeRun) call(id providers.ProviderID, brandedOnly bool) (res *providers.ProviderResult) {
	provider, err := r.svc.registry.GetProvider(id)
	if err != nil {
		return nil
	}

	if id == providers.ProviderBranded {
		if r.brandedCalls >= r.svc.flags.BrandedCallCap {
			r.svc.logger.Debug("branded call cap reached",
				zap.String("query", r.query),
				zap.Int("cap", r.svc.flags.BrandedCallCap),
			)
			return nil
		}
		r.brandedCalls++
	}

	stats := r.result.Tried[id]
	stats.Calls++

	start := time.Now()
	res, err = r.invoke(provider, providers.LookupRequest{
		Query:       r.query,
		BrandedOnly: brandedOnly,
		Context:     r.context,
	})
	elapsed := time.Since(start)

	if err != nil {
		stats.Errors++
		r.result.Tried[id] = stats
		r.svc.logger.Warn("provider lookup failed",
			zap.String("provider", string(id)),
			zap.String("query", r.query),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil
	}

	if res != nil {
		res = res.Clone()
		res.Provider = id
		res.Source = id.Source()
		if res.IngredientsLen > stats.BestIngredientsLen {
			stats.BestIngredientsLen = res.IngredientsLen
		}
		r.result.Candidates = append(r.result.Candidates, res)
	}
	r.result.Tried[id] = stats

	fields := []zap.Field{
		zap.String("provider", string(id)),
		zap.String("query", r.query),
		zap.Bool("branded_only", brandedOnly),
		zap.Bool("found", res != nil),
		zap.Int("ingredients_len", ingredientsLen(res)),
		zap.Duration("elapsed", elapsed),
	}
	if r.svc.flags.Diagnostics {
		r.svc.logger.Info("provider lookup", fields...)
	} else {
		r.svc.logger.Debug("provider lookup", fields...)
	}

	return res
}

// invoke runs the lookup under the per-call deadline and converts panics to errors
func (r *routeRun) invoke(provider providers.FoodProvider, req providers.LookupRequest) (res *providers.ProviderResult, err error) {
	ctx := r.ctx
	if r.svc.flags.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.svc.flags.ProviderTimeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("provider %s panicked: %v", provider.ID(), rec)
		}
	}()

	res, err = provider.Lookup(ctx, req)
	if err == nil && ctx.Err() != nil {
		// late result after the deadline
		return nil, ctx.Err()
	}
	return res, err
}

// IsWeakMinimal reports whether res is a minimal-provider result with at most
// WeakMaxIngredients ingredients.
func IsWeakMinimal(res *providers.ProviderResult) bool {
	return res != nil && res.Provider == providers.ProviderMinimal && res.IngredientsLen <= WeakMaxIngredients
}

// richest returns the candidate with the most ingredients (at least min),
// skipping exclude. Ties keep the earliest candidate.
func richest(candidates []*providers.ProviderResult, exclude *providers.ProviderResult, min int) *providers.ProviderResult {
	var best *providers.ProviderResult
	for _, c := range candidates {
		if c == nil || c == exclude || c.IngredientsLen < min {
			continue
		}
		if best == nil || c.IngredientsLen > best.IngredientsLen {
			best = c
		}
	}
	return best
}

// RichestAlternative is richest for callers outside the package
func RichestAlternative(candidates []*providers.ProviderResult, exclude *providers.ProviderResult) *providers.ProviderResult {
	return richest(candidates, exclude, AcceptMinIngredients)
}

func atLeast(res *providers.ProviderResult, n int) bool {
	return res != nil && res.IngredientsLen >= n
}

func ingredientsLen(res *providers.ProviderResult) int {
	if res == nil {
		return 0
	}
	return res.IngredientsLen
}
