package server

import (
	"net/http"

	"github.com/arclight-ai/quarry/internal/api"
	"github.com/arclight-ai/quarry/internal/api/handlers"
	"github.com/arclight-ai/quarry/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Patch("/{id}/link", cfg.DocumentHandler.Link)
			r.Post("/{id}/reprocess", cfg.DocumentHandler.Reprocess)
		})

		r.Post("/search", cfg.SearchHandler.Search)
	})

	return r
}
