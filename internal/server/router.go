package server

import (
	"net/http"

	"github.com/corpusworks/corpusd/internal/api"
	"github.com/corpusworks/corpusd/internal/api/handlers"
	"github.com/corpusworks/corpusd/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	APIKey          string
	DocumentHandler *handlers.DocumentHandler
	RetrieveHandler *handlers.RetrieveHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 25 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Post("/text", cfg.DocumentHandler.IngestText)
			r.Get("/", cfg.DocumentHandler.List)
			r.Post("/clear", cfg.DocumentHandler.Clear)
			r.Delete("/{source}", cfg.DocumentHandler.Delete)
		})

		r.Post("/retrieve", cfg.RetrieveHandler.Retrieve)
	})

	return r
}
