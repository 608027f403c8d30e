// Package httpapi assembles the chi route tree and middleware chain for the
// API binary.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

type Options struct {
	App            *handlers.App
	Config         *infra.Config
	Logger         zerolog.Logger
	CountryLookup  middleware.CountryLookup
	AllowedOrigins []string
}

func NewRouter(opts Options) http.Handler {
	app := opts.App
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.RateLimit(opts.Config.RateLimitPerMin, time.Minute),
		middleware.I18N("en", opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Post("/v1/auth/google", app.AuthGoogleVerify)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.JWTSecret))

		r.Get("/v1/me", app.Me)

		r.Route("/v1/documents", func(r chi.Router) {
			r.Post("/", app.DocumentUpload)
			r.Get("/", app.DocumentList)
		})

		r.Route("/v1/courses", func(r chi.Router) {
			r.Post("/", app.CourseCreate)
			r.Get("/", app.CourseList)
			r.Get("/{id}", app.CourseGet)
			r.Delete("/{id}", app.CourseDelete)
			r.Get("/{id}/export", app.CourseExport)
		})

		r.Route("/v1/exercises", func(r chi.Router) {
			r.Post("/generate", app.ExerciseGenerate)
			r.Get("/{id}", app.ExerciseGet)
		})

		r.Get("/v1/jobs/{id}", app.JobGet)

		r.Route("/v1/feedback", func(r chi.Router) {
			r.Post("/", app.FeedbackCreate)
			r.Get("/recent", app.FeedbackRecent)
		})

		r.Get("/v1/stats/summary", app.StatsSummary)
	})

	return r
}
