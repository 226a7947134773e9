package server

import (
	"net/http"

	"github.com/cloo-solutions/reportqa/internal/api"
	"github.com/cloo-solutions/reportqa/internal/api/handlers"
	"github.com/cloo-solutions/reportqa/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// BodyLimits bounds request bodies: small JSON commands, large document uploads.
var BodyLimits = middleware.BodyLimits{
	JSON:      1 << 20,
	Multipart: 64 << 20,
}

type RouterConfig struct {
	SessionHandler    *handlers.SessionHandler
	CollectionHandler *handlers.CollectionHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(BodyLimits))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", cfg.SessionHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", cfg.SessionHandler.Get)
			r.Delete("/", cfg.SessionHandler.Delete)
			r.Post("/documents", cfg.SessionHandler.Ingest)
			r.Post("/load", cfg.SessionHandler.Load)
			r.Put("/mode", cfg.SessionHandler.SetMode)
			r.Put("/filters", cfg.SessionHandler.SetFilters)
			r.Post("/ask", cfg.SessionHandler.Ask)
			r.Delete("/messages", cfg.SessionHandler.ClearMessages)
		})
	})

	r.Get("/filters", cfg.CollectionHandler.Filters)
	r.Delete("/collection", cfg.CollectionHandler.DeleteCollection)
	r.Delete("/store", cfg.CollectionHandler.DeleteStore)

	return r
}
