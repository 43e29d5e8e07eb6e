package handlers

import (
	"net/http"

	"github.com/upb/food-enrich/services/audit"
	"github.com/upb/food-enrich/services/providers"
	"github.com/upb/food-enrich/services/routing"
	"github.com/upb/food-enrich/utils"
)

// Version is reported by /status
const Version = "0.1.0"

// StatusInfo is the runtime snapshot served by /status
type StatusInfo struct {
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Providers   []providers.ProviderID `json:"providers"`
	Routing     routing.Flags          `json:"routing"`
	Auth        bool                   `json:"auth_enabled"`
	Audit       *audit.Stats           `json:"audit,omitempty"`
}

// StatusSource produces the current status snapshot
type StatusSource func() StatusInfo

// StatusHandler handles GET /status
func StatusHandler(source StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := source()
		if info.Version == "" {
			info.Version = Version
		}
		if info.Providers == nil {
			info.Providers = []providers.ProviderID{}
		}
		_ = utils.WriteJSON(w, http.StatusOK, info)
	}
}
