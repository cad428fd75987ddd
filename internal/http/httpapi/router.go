package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"genstudio/internal/http/handlers"
	"genstudio/internal/middleware"
)

// RouterOptions tunes the cross-cutting middleware.
type RouterOptions struct {
	Logger          zerolog.Logger
	RateLimitPerMin int
	CORSOrigins     []string
}

func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.UserID,
	)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/static/*", app.Static)

	limit := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/models", app.ListModels)
		r.Get("/models/*", app.GetModel)
		r.Post("/assets/sign", app.SignAssets)
		r.Get("/assets/watch", app.WatchAsset)

		r.Route("/generations", func(r chi.Router) {
			r.With(limit).Post("/", app.CreateGeneration)
			r.Get("/{id}", app.GetGeneration)
			r.Post("/{id}/cancel", app.CancelGeneration)
		})
		r.With(limit).Post("/uploads", app.Upload)
	})

	return r
}
