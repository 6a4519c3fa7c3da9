package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	if app.TrustProxy {
		// the submission throttle keys on the client IP
		root.Use(middleware.RealIP)
	}
	root.Use(
		middleware.RequestID,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.Logger, NoColor: true}),
		middleware.Recoverer,
		app.Metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   app.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)

	root.Get("/healthz", Health(app))
	root.Method("GET", "/metrics", app.Metrics.Handler())
	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	auth := middlewares.Authenticate(app.TokenSecret)

	throttle := middlewares.NewThrottle(app.SubmitRate, app.SubmitBurst)
	throttle.OnReject = func(*http.Request) { app.Metrics.Submission("throttled") }

	api := chi.NewRouter()

	api.Route("/auth", func(r chi.Router) {
		r.Post("/register", Register(app))
		r.Post("/login", Login(app))
		r.Post("/refresh", Refresh(app))

		r.With(auth).Get("/profile", GetProfile(app))
		r.With(auth).Put("/profile", UpdateProfile(app))
	})

	api.Route("/forms", func(r chi.Router) {
		// public, for the share link
		r.Get("/{id}", GetForm(app))
		r.Post("/{id}/visibility", EvaluateVisibility(app))

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/", CreateForm(app))
			r.Get("/", ListForms(app))
			r.Get("/count", CountForms(app))
			r.Put("/{id}", UpdateForm(app))
			r.Delete("/{id}", DeleteForm(app))
			r.Post("/{id}/questions", AddQuestion(app))
		})
	})

	api.Route("/submissions", func(r chi.Router) {
		r.With(throttle.Handler).Post("/{formId}", SubmitForm(app))

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/{formId}", ListSubmissions(app))
			r.Get("/{formId}/export/csv", ExportCSV(app))
		})
	})

	api.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "request.route")
	})

	return api
}

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := app.Ping(ctx); err != nil {
			log.WithRequest(r).Warnf("healthz.db_ping: %s", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]any{"status": "unavailable"})
			return
		}
		render.JSON(w, r, map[string]any{"status": "ok"})
	}
}

// principal returns the caller set by middlewares.Authenticate.
func principal(r *http.Request) middlewares.Principal {
	p, _ := middlewares.PrincipalFrom(r.Context())
	return p
}
