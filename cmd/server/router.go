package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/imhighyat/book-swap-api/internal/api"
	"github.com/imhighyat/book-swap-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTraceMiddleware(app.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewCORSMiddleware(app.config.Server.CORSOrigin))
	r.Use(middleware.NewMetricsMiddleware(app.metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	api.RegisterRoutes(r, api.Handlers{
		Users:    api.NewUserHandler(app.userService, app.libraryService, app.logger),
		Requests: api.NewRequestHandler(app.requestService, app.logger),
		Catalog:  api.NewCatalogHandler(app.catalogService, app.logger),
	})

	return r
}
