package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/maraichr/execsearch/internal/api/handler"
	apimw "github.com/maraichr/execsearch/internal/api/middleware"
	"github.com/maraichr/execsearch/internal/auth"
	"github.com/maraichr/execsearch/internal/store"
)

// RouterDeps holds the optional dependencies of the router. Nil fields
// disable the routes they back.
type RouterDeps struct {
	Runner   apihandler.SyncRunner
	Marks    apihandler.WatermarkReader
	Stream   string
	Reports  apihandler.ReportGenerator
	Verifier *auth.Verifier
}

func NewRouter(logger *slog.Logger, s *store.Store, deps *RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(apimw.CORS)
	r.Use(chimw.Recoverer)

	// Health checks
	health := apihandler.NewHealthHandler(s.Pool())
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	if deps == nil {
		deps = &RouterDeps{}
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(auth.RequireAuth(deps.Verifier, logger))
		}

		workflows := apihandler.NewWorkflowHandler(logger, s)
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", workflows.List)
			r.Post("/", workflows.Create)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", workflows.Get)
				r.Put("/", workflows.Update)
				r.Delete("/", workflows.Delete)

				if deps.Reports != nil {
					reports := apihandler.NewReportHandler(logger, s, deps.Reports)
					r.Post("/reports", reports.Create)
				}
			})
		})

		if deps.Runner != nil {
			sync := apihandler.NewSyncHandler(logger, deps.Runner, deps.Marks, s, deps.Stream)
			r.Route("/sync", func(r chi.Router) {
				r.Post("/runs", sync.Trigger)
				r.Get("/watermark", sync.Watermark)
			})
		}
	})

	return r
}
