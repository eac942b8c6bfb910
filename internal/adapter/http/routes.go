package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	otelx "github.com/inkwell-ai/inkwell/internal/adapter/otel"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/middleware"
)

// NewRouter builds the chi router with the standard middleware stack and all
// API routes mounted.
func NewRouter(h *Handlers, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(2 * cfg.Recognition.Timeout))
	r.Use(otelx.HTTPMiddleware(cfg.Logging.Service))

	MountRoutes(r, h)
	return r
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/recognition", func(r chi.Router) {
			r.Post("/process", h.ProcessImage)
			r.Post("/recognize", h.Recognize)
			r.Post("/review", h.Review)
			r.Post("/human-review", h.HumanReview)
		})

		r.Route("/validate", func(r chi.Router) {
			r.Post("/validate-text", h.ValidateText)
		})

		r.Route("/models", func(r chi.Router) {
			r.Get("/", h.ListModels)
			r.Post("/test", h.TestModel)
		})
	})
}
