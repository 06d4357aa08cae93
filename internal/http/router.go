package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"groundchat/internal/handlers"
	"groundchat/internal/render"
	"groundchat/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Citations service.CitationService
	Ask       service.AskService
	Documents service.DocumentService
	Renderer  *render.Renderer
	Health    http.Handler
	// Metrics defaults to the prometheus default registry handler.
	Metrics http.Handler
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	renderer := deps.Renderer
	if renderer == nil {
		renderer = render.NewRenderer(nil)
	}
	citationsHandler := handlers.NewCitationsHandler(deps.Citations, renderer)
	askHandler := handlers.NewAskHandler(deps.Ask, renderer)
	documentsHandler := handlers.NewDocumentsHandler(deps.Documents)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/citations/process", citationsHandler.Process)
		r.Post("/citations/render", citationsHandler.Render)

		r.Method(http.MethodPost, "/ask", askHandler)
		r.Post("/ask/stream", askHandler.Stream)
		r.Get("/turns/{id}", askHandler.GetTurn)

		r.Get("/documents", documentsHandler.List)
		r.Post("/documents", documentsHandler.Upload)
		r.Get("/documents/{id}", documentsHandler.Get)
		r.Delete("/documents/{id}", documentsHandler.Delete)
	})

	health := deps.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, nil, "")
	}
	r.Method(http.MethodGet, "/health", health)

	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	return r
}
