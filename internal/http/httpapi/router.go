package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"flyergen/internal/http/handlers"
	"flyergen/internal/middleware"
)

// Options carries the router's cross-cutting settings.
type Options struct {
	Logger         zerolog.Logger
	DefaultLocale  string
	AllowedOrigins []string
	// RateLimitPerMin caps campaign submissions per client IP per minute.
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/api/flyer", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/generate-flyers", app.GenerateFlyers)
	})

	return r
}
