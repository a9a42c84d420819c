package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stormydragon/twitfix/internal/api/handler"
	mw "github.com/stormydragon/twitfix/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	postHandler *handler.PostHandler,
	listHandler *handler.ListHandler,
	healthHandler *handler.HealthHandler,
	metricsHandler http.Handler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware. No path cleaning: a full post URL supplied in
	// the path carries a "//" that must reach the classifier intact.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(5 * time.Minute))

	// Operational endpoints
	r.Get("/healthz", healthHandler.Live)
	r.Handle("/metrics", metricsHandler)

	r.Get("/", postHandler.Home)
	r.Get("/oembed.json", postHandler.OEmbed)
	r.Get("/favicon.ico", http.NotFound)

	// Public cache listings
	r.Get("/api/top.json", listHandler.Top)
	r.Get("/api/latest.json", listHandler.Latest)

	// Everything else is treated as a post reference.
	r.Get("/*", postHandler.Serve)

	return r
}
