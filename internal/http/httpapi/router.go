package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mentorapi/internal/http/handlers"
	"mentorapi/internal/infra"
	"mentorapi/internal/middleware"
)

// RouterOptions configures the middleware chain. An empty JWTSecret serves
// every request anonymously; RequireAuth rejects tokenless job requests.
// CallbackSecret, when set, is the HMAC key provider callbacks are signed with.
type RouterOptions struct {
	JWTSecret          string
	RequireAuth        bool
	CallbackSecret     string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	Logger             infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Provider webhooks carry no end-user token. Their body only names the
	// task to re-check, so a signature is optional.
	r.Group(func(r chi.Router) {
		if opts.CallbackSecret != "" {
			r.Use(middleware.VerifySignature(opts.CallbackSecret))
		}
		r.Post("/v1/videos/callbacks", app.VideoCallback)
	})

	r.Group(func(r chi.Router) {
		switch {
		case opts.JWTSecret != "" && opts.RequireAuth:
			r.Use(middleware.AuthJWT(opts.JWTSecret))
		case opts.JWTSecret != "":
			r.Use(middleware.OptionalAuthJWT(opts.JWTSecret))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
			r.Post("/v1/videos", app.VideosGenerate)
			r.Post("/v1/videos:wait", app.VideosGenerateAndWait)
		})

		r.Route("/v1/videos/{job_id}", func(r chi.Router) {
			r.Get("/", app.VideoStatus)
			r.Post("/wait", app.VideoWait)
			r.Get("/result", app.VideoResult)
			r.Post("/cancel", app.VideoCancel)
		})
	})

	return r
}
