// Package api provides the admin REST surface: operator authentication,
// user management, job inspection and cancellation, and statistics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bidon15/printspool/internal/auth"
	"github.com/Bidon15/printspool/internal/database"
	"github.com/Bidon15/printspool/internal/middleware"
	"github.com/Bidon15/printspool/internal/models"
	"github.com/Bidon15/printspool/internal/server"
	"github.com/Bidon15/printspool/internal/service"
)

// Deps collects the services the admin API is built from. Redis is
// optional; when nil the API runs without its fixed-window rate limiter.
type Deps struct {
	Tokens *auth.Manager
	Users  service.UserService
	Jobs   service.JobService
	Stats  service.StatsService
	Wire   *server.Handler
	DB     *database.Postgres
	Redis  *database.Redis

	RateLimit middleware.RateLimitConfig
	Logger    *slog.Logger
}

// NewRouter assembles the admin API router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	if deps.Redis != nil {
		r.Use(middleware.RateLimit(deps.Redis, deps.RateLimit))
	}

	health := &HealthHandler{DB: deps.DB, Redis: deps.Redis}
	authh := &AuthHandler{Users: deps.Users, Tokens: deps.Tokens}
	users := &UserHandler{Users: deps.Users}
	jobs := &JobHandler{Jobs: deps.Jobs}
	stats := &StatsHandler{Stats: deps.Stats, Wire: deps.Wire}

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authh.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Tokens))

			r.Post("/auth/refresh", authh.Refresh)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", users.Me)
				r.With(middleware.RequireRole(models.RoleAdmin)).Get("/", users.List)
				r.With(middleware.RequireRole(models.RoleAdmin)).Post("/", users.Create)
				r.With(middleware.RequireRole(models.RoleAdmin)).Get("/{id}", users.Get)
				r.With(middleware.RequireRole(models.RoleAdmin)).Put("/{id}", users.Update)
				r.With(middleware.RequireRole(models.RoleAdmin)).Delete("/{id}", users.Delete)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", jobs.List)
				r.Get("/{jobID}", jobs.Get)
				r.With(middleware.RequireRole(models.RoleAdmin)).Post("/{jobID}/cancel", jobs.Cancel)
			})

			r.Route("/stats", func(r chi.Router) {
				r.Get("/", stats.Summary)
				r.With(middleware.RequireRole(models.RoleAdmin)).Get("/clients", stats.Clients)
				r.With(middleware.RequireRole(models.RoleAdmin)).Get("/daily", stats.Daily)
			})
		})
	})

	return gzhttp.GzipHandler(r)
}

// isReader reports whether the principal may read resources owned by
// other users.
func isReader(claims *auth.Claims) bool {
	return claims.HasRole(models.RoleAdmin.String()) || claims.HasRole(models.RoleViewer.String())
}
