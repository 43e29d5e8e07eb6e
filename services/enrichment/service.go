// Package enrichment turns a free-text food query into a food record: it
// validates the query, consults the lookup cache, routes across providers,
// applies the aggregate guards, formats the record and hands a trace of the
// lookup to the recorder.
package enrichment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/upb/food-enrich/models"
	"github.com/upb/food-enrich/repositories"
	"github.com/upb/food-enrich/services"
	"github.com/upb/food-enrich/services/aggregate"
	"github.com/upb/food-enrich/services/audit"
	"github.com/upb/food-enrich/services/providers"
	"github.com/upb/food-enrich/services/routing"
)

// MaxQueryLength is the longest accepted query, in characters
const MaxQueryLength = 200

// EnrichRequest is a single enrichment call
type EnrichRequest struct {
	Query     string                  `json:"query" validate:"required,notblank"`
	Context   providers.LookupContext `json:"context" validate:"omitempty,oneof=manual scan"`
	RequestID string                  `json:"-"`
}

// EnrichResponse is the outcome of an enrichment call
type EnrichResponse struct {
	LookupID      uuid.UUID                                     `json:"lookup_id"`
	Query         string                                        `json:"query"`
	Context       providers.LookupContext                       `json:"context"`
	Record        *aggregate.FoodRecord                         `json:"record"`
	Chosen        *providers.ProviderResult                     `json:"chosen,omitempty"`
	Decision      routing.Decision                              `json:"decision"`
	WhyPicked     string                                        `json:"why_picked"`
	GuardsApplied []string                                      `json:"guards_applied"`
	Tried         map[providers.ProviderID]routing.AttemptStats `json:"tried"`
	TimeMs        int64                                         `json:"time_ms"`
	Cached        bool                                          `json:"cached"`
}

// Clone returns a deep copy of the response
func (r *EnrichResponse) Clone() *EnrichResponse {
	if r == nil {
		return nil
	}
	out := *r
	if r.Record != nil {
		rec := *r.Record
		rec.Ingredients = append([]string(nil), r.Record.Ingredients...)
		if r.Record.Serving.Grams != nil {
			g := *r.Record.Serving.Grams
			rec.Serving.Grams = &g
		}
		if r.Record.Serving.Text != nil {
			t := *r.Record.Serving.Text
			rec.Serving.Text = &t
		}
		out.Record = &rec
	}
	out.Chosen = r.Chosen.Clone()
	out.GuardsApplied = append([]string{}, r.GuardsApplied...)
	if r.Tried != nil {
		out.Tried = make(map[providers.ProviderID]routing.AttemptStats, len(r.Tried))
		for k, v := range r.Tried {
			out.Tried[k] = v
		}
	}
	return &out
}

func (r *EnrichResponse) markCached() {
	r.Cached = true
	if r.Chosen != nil {
		r.Chosen.Cached = true
	}
	if r.Record != nil {
		r.Record.Cached = true
	}
}

// Service orchestrates enrichment lookups
type Service struct {
	router     *routing.RoutingService
	aggregator *aggregate.Aggregator
	formatter  *aggregate.Formatter
	cache      *LookupCache
	recorder   audit.Recorder
	repo       repositories.LookupRepository
	persistent bool
	group      singleflight.Group
	logger     *zap.Logger
}

// NewService creates an enrichment service. cache and recorder may be nil;
// a nil repo behaves like a store with no history.
func NewService(
	router *routing.RoutingService,
	cache *LookupCache,
	recorder audit.Recorder,
	repo repositories.LookupRepository,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	persistent := repo != nil
	if repo == nil {
		repo = repositories.NewNopLookupRepository()
	}
	return &Service{
		router:     router,
		aggregator: aggregate.NewAggregator(logger),
		formatter:  aggregate.NewFormatter(),
		cache:      cache,
		recorder:   recorder,
		repo:       repo,
		persistent: persistent,
		logger:     logger,
	}
}

// Enrich resolves a query into a food record
func (s *Service) Enrich(ctx context.Context, req EnrichRequest) (*EnrichResponse, error) {
	query, lookupCtx, err := validateRequest(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(lookupCtx, query)
	if s.cache != nil {
		if hit := s.cache.Get(key); hit != nil {
			hit.LookupID = uuid.New()
			hit.Query = query
			hit.TimeMs = 0
			hit.markCached()
			s.logger.Debug("enrichment cache hit", zap.String("key", key))
			s.record(hit, req.RequestID)
			return hit, nil
		}
	}

	// Concurrent identical lookups share one routing pass, detached from
	// the cancellation of the caller that started it.
	v, _, shared := s.group.Do(key, func() (interface{}, error) {
		resp := s.resolve(context.WithoutCancel(ctx), query, lookupCtx)
		if s.cache != nil && resp.Chosen != nil {
			s.cache.Set(key, resp)
		}
		return resp, nil
	})

	resp := v.(*EnrichResponse).Clone()
	resp.LookupID = uuid.New()
	resp.Query = query
	if shared {
		s.logger.Debug("enrichment lookup shared", zap.String("key", key))
	}

	s.record(resp, req.RequestID)
	return resp, nil
}

func (s *Service) resolve(ctx context.Context, query string, lookupCtx providers.LookupContext) *EnrichResponse {
	start := time.Now()

	rr := s.router.RouteEnrichment(ctx, query, lookupCtx)
	agg := s.aggregator.AggregateResults(rr)
	record := s.formatter.Format(agg, query)

	resp := &EnrichResponse{
		Query:         query,
		Context:       lookupCtx,
		Record:        record,
		Chosen:        agg.Final,
		Decision:      agg.Decision,
		WhyPicked:     agg.WhyPicked,
		GuardsApplied: agg.GuardsApplied,
		Tried:         agg.Tried,
		TimeMs:        time.Since(start).Milliseconds(),
	}
	if resp.Tried == nil {
		resp.Tried = map[providers.ProviderID]routing.AttemptStats{}
	}

	s.logger.Info("enrichment resolved",
		zap.String("query", query),
		zap.String("context", string(lookupCtx)),
		zap.String("decision", string(resp.Decision)),
		zap.String("why_picked", resp.WhyPicked),
		zap.Strings("guards", resp.GuardsApplied),
		zap.Int64("time_ms", resp.TimeMs),
	)

	return resp
}

func (s *Service) record(resp *EnrichResponse, requestID string) {
	if s.recorder == nil {
		return
	}

	lookup := models.NewEnrichmentLookup(resp.Query, string(resp.Context), string(resp.Decision), resp.WhyPicked).
		WithGuards(resp.GuardsApplied).
		WithTiming(resp.TimeMs, resp.Cached).
		WithRequestID(requestID)
	lookup.ID = resp.LookupID
	if c := resp.Chosen; c != nil {
		lookup.WithChosen(string(c.Provider), string(c.Source), c.IngredientsLen, c.Confidence)
	}
	if resp.Record != nil {
		lookup.WithRecord(resp.Record)
	}
	for _, id := range sortedProviders(resp.Tried) {
		stats := resp.Tried[id]
		lookup.AddAttempt(string(id), stats.Calls, stats.BestIngredientsLen, stats.Errors)
	}

	if err := s.recorder.Record(lookup); err != nil {
		s.logger.Warn("lookup not recorded", zap.String("lookup_id", lookup.ID.String()), zap.Error(err))
	}
}

// HistoryEnabled reports whether lookups are backed by a real store
func (s *Service) HistoryEnabled() bool {
	return s.persistent
}

// GetLookup returns a persisted lookup
func (s *Service) GetLookup(ctx context.Context, id uuid.UUID) (*models.EnrichmentLookup, error) {
	lookup, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrLookupNotFound.Clone().WithDetail("id", id.String())
		}
		return nil, services.WrapInternal("failed to load lookup", err)
	}
	return lookup, nil
}

// ListLookups returns persisted lookups, newest first
func (s *Service) ListLookups(ctx context.Context, limit, offset int) ([]*models.EnrichmentLookup, error) {
	if limit < 0 || offset < 0 {
		return nil, services.ErrInvalidInput.Clone().WithDetail("reason", "limit and offset must not be negative")
	}
	lookups, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list lookups", err)
	}
	return lookups, nil
}

// DecisionStats returns how many persisted lookups ended in each decision
func (s *Service) DecisionStats(ctx context.Context) ([]models.DecisionCount, error) {
	counts, err := s.repo.CountByDecision(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to count lookups", err)
	}
	return counts, nil
}

// CacheStats reports the lookup cache counters; ok is false when caching is off
func (s *Service) CacheStats() (stats CacheStats, ok bool) {
	if s.cache == nil {
		return CacheStats{}, false
	}
	return s.cache.Stats(), true
}

func validateRequest(req EnrichRequest) (string, providers.LookupContext, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", "", services.ErrEmptyQuery
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return "", "", services.ErrQueryTooLong.Clone().WithDetail("max_length", MaxQueryLength).WithDetail("length", n)
	}

	lookupCtx := req.Context
	if lookupCtx == "" {
		lookupCtx = providers.ContextManual
	}
	if !lookupCtx.Valid() {
		return "", "", services.ErrInvalidContext.Clone().WithDetail("context", string(lookupCtx))
	}
	return query, lookupCtx, nil
}

func sortedProviders(tried map[providers.ProviderID]routing.AttemptStats) []providers.ProviderID {
	ids := make([]providers.ProviderID, 0, len(tried))
	for id := range tried {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
