package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/karlokarate/nxcatalog/internal/config"
)

// NewRouter builds the chi router for the catalog control facade: CORS and
// rate limiting globally, then one route group per resource.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(rateLimiter(cfg))

	r.Route("/sync", func(r chi.Router) {
		r.Post("/{accountKey}", h.HandleStartSync)
		r.Post("/{accountKey}/cancel", h.HandleCancelSync)
		r.Get("/{accountKey}/status", h.HandleSyncStatus)
	})

	r.Get("/categories/{accountKey}", h.HandleListCategories)

	r.Post("/catalog-mode", h.HandleSetCatalogMode)

	r.Post("/works/{workKey}/enrich", h.HandleEnrichWork)

	return r
}

func rateLimiter(cfg config.ServerConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	reqs := cfg.RateLimitReqs
	if reqs <= 0 {
		reqs = 100
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(reqs, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}
