package providers

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ProviderID identifies a food-data provider by the role it plays in routing
type ProviderID string

const (
	// ProviderBranded returns packaged/branded products with full ingredient lists
	ProviderBranded ProviderID = "branded"

	// ProviderGeneric returns generic ingredient matches
	ProviderGeneric ProviderID = "generic"

	// ProviderMinimal returns minimal-ingredient reference foods
	ProviderMinimal ProviderID = "minimal"

	// ProviderEstimated marks values estimated without a provider match
	ProviderEstimated ProviderID = "estimated"
)

// Source is the caller-facing source tag of a result
type Source string

const (
	SourceBranded   Source = "BRANDED"
	SourceGeneric   Source = "GENERIC"
	SourceMinimal   Source = "MINIMAL"
	SourceEstimated Source = "ESTIMATED"
)

// Source returns the source tag for the provider
func (id ProviderID) Source() Source {
	switch id {
	case ProviderBranded:
		return SourceBranded
	case ProviderGeneric:
		return SourceGeneric
	case ProviderMinimal:
		return SourceMinimal
	default:
		return SourceEstimated
	}
}

// LookupContext describes how the user initiated the lookup
type LookupContext string

const (
	ContextManual LookupContext = "manual"
	ContextScan   LookupContext = "scan"
)

// Valid reports whether c is a known lookup context
func (c LookupContext) Valid() bool {
	return c == ContextManual || c == ContextScan
}

// FoodProvider is the capability every food-data source implements.
// Lookup returns (nil, nil) when the provider has nothing for the query.
type FoodProvider interface {
	// ID returns the routing role of the provider
	ID() ProviderID

	// Lookup searches the provider for the query
	Lookup(ctx context.Context, req LookupRequest) (*ProviderResult, error)
}

// LookupRequest is a single provider query
type LookupRequest struct {
	// Query is the free-text food description
	Query string `json:"query"`

	// BrandedOnly restricts results to branded products (ignored by non-branded providers)
	BrandedOnly bool `json:"branded_only,omitempty"`

	// Context is where the query came from
	Context LookupContext `json:"context,omitempty"`
}

// ProviderResult is the best match a provider returned for a query
type ProviderResult struct {
	Provider       ProviderID `json:"provider"`
	Source         Source     `json:"source"`
	IngredientsLen int        `json:"ingredients_len"`
	Confidence     float64    `json:"confidence"`
	Data           *FoodData  `json:"data,omitempty"`
	Cached         bool       `json:"cached,omitempty"`
}

// NewProviderResult builds a result for id, deriving the source tag and
// ingredient count from data.
func NewProviderResult(id ProviderID, confidence float64, data *FoodData) *ProviderResult {
	res := &ProviderResult{
		Provider:   id,
		Source:     id.Source(),
		Confidence: clampConfidence(confidence),
		Data:       data,
	}
	if data != nil {
		res.IngredientsLen = len(data.Ingredients)
	}
	return res
}

// Clone returns a deep copy of the result
func (r *ProviderResult) Clone() *ProviderResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Data != nil {
		data := *r.Data
		data.Ingredients = append([]string(nil), r.Data.Ingredients...)
		if r.Data.Nutriments != nil {
			data.Nutriments = make(map[string]any, len(r.Data.Nutriments))
			for k, v := range r.Data.Nutriments {
				data.Nutriments[k] = v
			}
		}
		out.Data = &data
	}
	return &out
}

// FoodData is the provider payload. Nutriments use Open Food Facts style keys
// (energy-kcal_100g, proteins_serving, ...) regardless of the upstream format.
type FoodData struct {
	ExternalID  string         `json:"external_id,omitempty" yaml:"external_id"`
	Name        string         `json:"name" yaml:"name"`
	Brand       string         `json:"brand,omitempty" yaml:"brand"`
	Barcode     string         `json:"barcode,omitempty" yaml:"barcode"`
	Ingredients []string       `json:"ingredients,omitempty" yaml:"ingredients"`
	ServingSize string         `json:"serving_size,omitempty" yaml:"serving_size"`
	Nutriments  map[string]any `json:"nutriments,omitempty" yaml:"nutriments"`
}

// ProviderConfig holds common configuration for HTTP-backed providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// AppID is required by providers that authenticate with an id/key pair
	AppID string

	// BaseURL for the API (optional override)
	BaseURL string

	// UserAgent sent with every request
	UserAgent string

	// Timeout for requests
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// RetryDelay between retries
	RetryDelay time.Duration

	// PageSize is the number of search hits requested
	PageSize int

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		UserAgent:  "food-enrich/1.0",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		PageSize:   5,
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider ProviderID

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := string(e.Provider) + ": " + e.Message
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider ProviderID, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
