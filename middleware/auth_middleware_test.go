package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

func okHandler(t *testing.T, check func(r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token allows request", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		m := NewAuthMiddleware(mockValidator, logger)

		claims := &Claims{Subject: "svc-scanner", Scope: "enrich"}
		mockValidator.On("ValidateToken", mock.Anything, "valid-token").Return(claims, nil)

		handler := m.RequireAuth(okHandler(t, func(r *http.Request) {
			got := GetClaimsFromContext(r.Context())
			require.NotNil(t, got)
			assert.Equal(t, "svc-scanner", got.Subject)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/lookups", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		handler := NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler(t, nil))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockValidator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})

	t.Run("non-bearer scheme returns 401", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		handler := NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler(t, nil))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token returns 401", func(t *testing.T) {
		mockValidator := new(MockTokenValidator)
		mockValidator.On("ValidateToken", mock.Anything, "bad").Return(nil, ErrInvalidToken)
		handler := NewAuthMiddleware(mockValidator, logger).RequireAuth(okHandler(t, nil))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "bearer bad")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired token")
		mockValidator.AssertExpectations(t)
	})

	t.Run("nil validator disables auth", func(t *testing.T) {
		m := NewAuthMiddleware(nil, nil)
		assert.False(t, m.Enabled())

		w := httptest.NewRecorder()
		m.RequireAuth(okHandler(t, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestJWTValidator(t *testing.T) {
	config := JWTConfig{Secret: "test-secret", Issuer: "food-enrich", Audience: "api"}
	validator, err := NewJWTValidator(config)
	require.NoError(t, err)

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	valid, err := SignToken(config, "svc-scanner", jwt.RegisteredClaims{ExpiresAt: future})
	require.NoError(t, err)

	expired, err := SignToken(config, "svc-scanner", jwt.RegisteredClaims{ExpiresAt: past})
	require.NoError(t, err)

	wrongSecret, err := SignToken(JWTConfig{Secret: "other", Issuer: "food-enrich", Audience: "api"}, "svc", jwt.RegisteredClaims{ExpiresAt: future})
	require.NoError(t, err)

	wrongIssuer, err := SignToken(JWTConfig{Secret: "test-secret", Issuer: "someone-else", Audience: "api"}, "svc", jwt.RegisteredClaims{ExpiresAt: future})
	require.NoError(t, err)

	noExpiry, err := SignToken(config, "svc", jwt.RegisteredClaims{})
	require.NoError(t, err)

	noSubject, err := SignToken(config, "", jwt.RegisteredClaims{ExpiresAt: future})
	require.NoError(t, err)

	rs := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "svc", ExpiresAt: future})
	unsigned, err := rs.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		claims, err := validator.ValidateToken(context.Background(), valid)
		require.NoError(t, err)
		assert.Equal(t, "svc-scanner", claims.Subject)
		assert.Equal(t, "food-enrich", claims.Issuer)
		assert.Equal(t, []string{"api"}, claims.Audience)
		assert.Equal(t, future.Unix(), claims.ExpiresAt)
	})

	t.Run("expired token", func(t *testing.T) {
		_, err := validator.ValidateToken(context.Background(), expired)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	rejected := map[string]string{
		"wrong secret":    wrongSecret,
		"wrong issuer":    wrongIssuer,
		"missing expiry":  noExpiry,
		"missing subject": noSubject,
		"unsigned":        unsigned,
		"garbage":         "not.a.token",
	}
	for name, token := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := validator.ValidateToken(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	t.Run("secret is required", func(t *testing.T) {
		_, err := NewJWTValidator(JWTConfig{})
		assert.ErrorIs(t, err, ErrMissingSecret)

		_, err = SignToken(JWTConfig{}, "svc", jwt.RegisteredClaims{})
		assert.ErrorIs(t, err, ErrMissingSecret)
	})
}

func TestRequireAuth_WithJWTValidator(t *testing.T) {
	config := JWTConfig{Secret: "s3cret"}
	validator, err := NewJWTValidator(config)
	require.NoError(t, err)

	token, err := SignToken(config, "cli", jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))})
	require.NoError(t, err)

	handler := NewAuthMiddleware(validator, zap.NewNop()).RequireAuth(okHandler(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrich", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPropagateRequestID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(PropagateRequestID)

	var seen string
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestIDFromContext(ctx))
	assert.Nil(t, GetClaimsFromContext(ctx))

	ctx = WithRequestID(ctx, "abc")
	ctx = WithClaims(ctx, &Claims{Subject: "svc"})
	assert.Equal(t, "abc", GetRequestIDFromContext(ctx))
	assert.Equal(t, "svc", GetClaimsFromContext(ctx).Subject)
}
