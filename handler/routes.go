package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phbpx/leadtrack"
	"github.com/phbpx/leadtrack/metrics"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// Config carries the dependencies of the API routes.
type Config struct {
	Leads          leadtrack.LeadService
	Users          leadtrack.UserService
	Images         leadtrack.ImageStore
	Metrics        *metrics.Metrics
	Log            *otelzap.SugaredLogger
	MaxUploadBytes int64

	// StatusCheck backs /healthz. Nil means always healthy.
	StatusCheck func(ctx context.Context) error
}

// Register mounts every route of the service on r.
func Register(r chi.Router, cfg Config) {
	leadHandler := NewLeadHandler(cfg.Leads, cfg.Images, cfg.Metrics, cfg.Log)
	uploadHandler := NewUploadHandler(cfg.Images, cfg.MaxUploadBytes, cfg.Metrics, cfg.Log)
	userHandler := NewUserHandler(cfg.Users, cfg.Log)

	r.Route("/api", func(r chi.Router) {
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", leadHandler.List)
			r.Post("/", leadHandler.Create)

			// GET reads {id} as a user id, PUT and DELETE as a lead id.
			r.Get("/{id}", leadHandler.ListByUser)
			r.Put("/{id}", leadHandler.Update)
			r.Delete("/{id}", leadHandler.Delete)
		})
		r.Post("/upload", uploadHandler.Upload)
		r.Get("/stats", leadHandler.Stats)
		r.Post("/users", userHandler.Create)
	})

	r.Get(cfg.Images.PublicPath()+"/*", cfg.Images.Handler().ServeHTTP)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if cfg.StatusCheck != nil {
			if err := cfg.StatusCheck(ctx); err != nil {
				cfg.Log.Ctx(ctx).Errorw("healthz", "error", err.Error())
				respond(ctx, rw, http.StatusServiceUnavailable, map[string]string{"status": "db not ready"})
				return
			}
		}
		respond(ctx, rw, http.StatusOK, map[string]string{"status": "ok"})
	})
}
