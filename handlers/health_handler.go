package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/food-enrich/services/providers"
	"github.com/upb/food-enrich/utils"
)

// Check results reported by the readiness probe
const (
	checkHealthy       = "healthy"
	checkUnhealthy     = "unhealthy"
	checkNotConfigured = "not_configured"
)

// HealthResponse represents the readiness response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProviderLister reports the registered food data providers
type ProviderLister interface {
	ListProviders() []providers.ProviderID
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db        *sql.DB
	providers ProviderLister
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when lookup
// history is not persisted.
func NewHealthHandler(db *sql.DB, providers ProviderLister, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		providers: providers,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz. The service is ready when at least
// one provider is registered and, if configured, the database answers.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	switch {
	case h.db == nil:
		checks["database"] = checkNotConfigured
	case h.checkDatabase(ctx) != nil:
		checks["database"] = checkUnhealthy
		ready = false
	default:
		checks["database"] = checkHealthy
	}

	if h.providers == nil || len(h.providers.ListProviders()) == 0 {
		checks["providers"] = checkNotConfigured
		ready = false
	} else {
		checks["providers"] = checkHealthy
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		h.logger.Warn("database query check failed", zap.Error(err))
		return err
	}

	return nil
}
