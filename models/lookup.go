package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// EnrichmentLookup is the persisted trace of one enrichment call
type EnrichmentLookup struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Query          string          `json:"query" db:"query"`
	Context        string          `json:"context" db:"context"`
	Decision       string          `json:"decision" db:"decision"`
	WhyPicked      string          `json:"why_picked" db:"why_picked"`
	Provider       *string         `json:"provider,omitempty" db:"provider"`
	Source         *string         `json:"source,omitempty" db:"source"`
	IngredientsLen int             `json:"ingredients_len" db:"ingredients_len"`
	Confidence     *float64        `json:"confidence,omitempty" db:"confidence"`
	Cached         bool            `json:"cached" db:"cached"`
	Guards         pq.StringArray  `json:"guards" db:"guards"`
	TimeMs         int64           `json:"time_ms" db:"time_ms"`
	Record         json.RawMessage `json:"record,omitempty" db:"record"` // JSONB copy of the returned food record
	RequestID      string          `json:"request_id,omitempty" db:"request_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`

	Attempts []ProviderAttempt `json:"attempts,omitempty" db:"-"`
}

// ProviderAttempt is the per-provider bookkeeping of one lookup
type ProviderAttempt struct {
	LookupID           uuid.UUID `json:"-" db:"lookup_id"`
	Provider           string    `json:"provider" db:"provider"`
	Calls              int       `json:"calls" db:"calls"`
	BestIngredientsLen int       `json:"best_ingredients_len" db:"best_ingredients_len"`
	Errors             int       `json:"errors" db:"errors"`
}

// TableName returns the table name for the EnrichmentLookup model
func (EnrichmentLookup) TableName() string {
	return "enrichment_lookups"
}

// TableName returns the table name for the ProviderAttempt model
func (ProviderAttempt) TableName() string {
	return "enrichment_attempts"
}

// NewEnrichmentLookup creates a new lookup record
func NewEnrichmentLookup(query, lookupContext, decision, whyPicked string) *EnrichmentLookup {
	return &EnrichmentLookup{
		ID:        uuid.New(),
		Query:     query,
		Context:   lookupContext,
		Decision:  decision,
		WhyPicked: whyPicked,
		Guards:    pq.StringArray{},
		CreatedAt: time.Now().UTC(),
	}
}

// WithChosen sets the chosen provider fields
func (l *EnrichmentLookup) WithChosen(provider, source string, ingredientsLen int, confidence float64) *EnrichmentLookup {
	l.Provider = &provider
	l.Source = &source
	l.IngredientsLen = ingredientsLen
	l.Confidence = &confidence
	return l
}

// WithGuards sets the applied guard tags
func (l *EnrichmentLookup) WithGuards(guards []string) *EnrichmentLookup {
	l.Guards = append(pq.StringArray{}, guards...)
	return l
}

// WithRecord stores the returned record as JSON
func (l *EnrichmentLookup) WithRecord(record interface{}) *EnrichmentLookup {
	if record == nil {
		return l
	}
	if data, err := json.Marshal(record); err == nil {
		l.Record = data
	}
	return l
}

// WithTiming sets the elapsed time and cache flag
func (l *EnrichmentLookup) WithTiming(timeMs int64, cached bool) *EnrichmentLookup {
	l.TimeMs = timeMs
	l.Cached = cached
	return l
}

// WithRequestID sets the request correlation id
func (l *EnrichmentLookup) WithRequestID(requestID string) *EnrichmentLookup {
	l.RequestID = requestID
	return l
}

// AddAttempt appends a provider attempt bound to this lookup
func (l *EnrichmentLookup) AddAttempt(provider string, calls, bestIngredientsLen, errors int) *EnrichmentLookup {
	l.Attempts = append(l.Attempts, ProviderAttempt{
		LookupID:           l.ID,
		Provider:           provider,
		Calls:              calls,
		BestIngredientsLen: bestIngredientsLen,
		Errors:             errors,
	})
	return l
}

// DecisionCount is one row of the per-decision histogram
type DecisionCount struct {
	Decision string `json:"decision" db:"decision"`
	Count    int64  `json:"count" db:"count"`
}
