package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/food-enrich/app"
	"github.com/upb/food-enrich/handlers"
	"github.com/upb/food-enrich/middleware"
	"github.com/upb/food-enrich/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.PropagateRequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if deps.Config.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(deps.Config.Server.RequestTimeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.SQLDB(), deps.Providers, deps.Logger)
	enrich := handlers.NewEnrichmentHandler(deps.Enrichment, deps.Logger)
	food := handlers.NewFoodHandler(deps.Logger)
	lookups := handlers.NewLookupHandler(deps.Enrichment, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	r.Get("/status", handlers.StatusHandler(deps.Status))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Handler)
		}
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Post("/enrich", enrich.HandleEnrich)
		r.Get("/serving/parse", food.HandleParseServing)
		r.Post("/nutrition/normalize", food.HandleNormalize)

		r.Route("/lookups", func(r chi.Router) {
			r.Get("/", lookups.HandleList)
			r.Get("/stats", lookups.HandleStats)
			r.Get("/{id}", lookups.HandleGet)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
