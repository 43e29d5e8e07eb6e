package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Query   string   `json:"query" validate:"required,notblank"`
	Context string   `json:"context" validate:"omitempty,oneof=manual scan"`
	Grams   *float64 `json:"serving_grams,omitempty" validate:"omitempty,gt=0"`
}

func TestValidateStruct(t *testing.T) {
	negative := -5.0
	positive := 30.0

	tests := []struct {
		name      string
		req       testRequest
		wantField string
		wantMsg   string
	}{
		{
			name: "valid request",
			req:  testRequest{Query: "apple", Context: "scan", Grams: &positive},
		},
		{
			name:      "missing query",
			req:       testRequest{},
			wantField: "query",
			wantMsg:   "query is required",
		},
		{
			name:      "blank query",
			req:       testRequest{Query: "   "},
			wantField: "query",
			wantMsg:   "query must not be blank",
		},
		{
			name:      "unknown context",
			req:       testRequest{Query: "apple", Context: "voice"},
			wantField: "context",
			wantMsg:   "context must be one of: manual scan",
		},
		{
			name:      "non-positive grams",
			req:       testRequest{Query: "apple", Grams: &negative},
			wantField: "serving_grams",
			wantMsg:   "serving_grams must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			fields := GetValidationFields(err)
			assert.Equal(t, tt.wantMsg, fields[tt.wantField])
		})
	}
}

func TestGetValidationFields_NonValidationError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
	assert.False(t, IsValidationError(assert.AnError))
}

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name      string
		uuid      string
		wantError bool
	}{
		{name: "valid UUID", uuid: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "invalid UUID - wrong format", uuid: "not-a-uuid", wantError: true},
		{name: "empty string", uuid: "", wantError: true},
		{name: "invalid UUID - missing parts", uuid: "550e8400-e29b-41d4", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseUUID(tt.uuid)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.uuid, id.String())
		})
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantError  bool
	}{
		{name: "defaults", query: "", wantLimit: DefaultPageLimit, wantOffset: 0},
		{name: "explicit", query: "limit=10&offset=20", wantLimit: 10, wantOffset: 20},
		{name: "limit capped", query: "limit=5000", wantLimit: MaxPageLimit},
		{name: "zero limit", query: "limit=0", wantError: true},
		{name: "non-numeric limit", query: "limit=ten", wantError: true},
		{name: "negative offset", query: "offset=-1", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			limit, offset, err := ParsePagination(values)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
