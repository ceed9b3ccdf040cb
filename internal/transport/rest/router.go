package rest

import (
	"log/slog"
	"net/http"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/auth"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/password"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport/middleware"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport/swagger"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes is everything the router mounts. Nil handlers leave their routes out.
type Routes struct {
	Health   *HealthHandler
	Auth     *auth.Handler
	Users    *user.Handler
	Password *password.Handler

	// CredentialLimiter throttles login and the reset flow per client IP.
	CredentialLimiter *middleware.RateLimiter
	AllowedOrigins    []string
	MetricsPath       string
}

func RegisterAllRoutes(router *chi.Mux, routes Routes, logger *slog.Logger) {
	base := transport.NewBaseHandler(logger)

	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORS(routes.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware(logger))
	if routes.MetricsPath != "" {
		router.Use(middleware.Instrument)
		router.Handle(routes.MetricsPath, promhttp.Handler())
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get(swagger.DocumentPath, swagger.DocumentHandler().ServeHTTP)
	router.Handle("/swagger/*", swagger.Handler())

	if routes.Health != nil {
		router.Get("/", routes.Health.rootHandler)
		router.Get("/health", routes.Health.healthCheckHandler)
		router.Get("/ping", routes.Health.pingHandler)
	}

	throttle := func(h http.HandlerFunc) http.Handler {
		if routes.CredentialLimiter == nil {
			return h
		}
		return routes.CredentialLimiter.Middleware(h)
	}

	if routes.Auth == nil {
		return
	}

	router.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodPost, "/login", throttle(routes.Auth.Login))
		r.Post("/refresh", routes.Auth.Refresh)

		if routes.Users != nil {
			r.Post("/register", routes.Users.Register)
		}
		if routes.Password != nil {
			r.Method(http.MethodPost, "/forgot-password", throttle(routes.Password.ForgotPassword))
			r.Method(http.MethodGet, "/reset-password/{token}", throttle(routes.Password.ValidateToken))
			r.Method(http.MethodPost, "/reset-password/{token}", throttle(routes.Password.ResetPassword))
		}

		r.Group(func(pr chi.Router) {
			pr.Use(routes.Auth.AuthMiddleware)
			pr.Post("/logout", routes.Auth.Logout)
			pr.Get("/me", routes.Auth.Me)
			if routes.Users != nil {
				pr.Post("/change-password", routes.Users.ChangePassword)
			}
		})
	})

	if routes.Users == nil {
		return
	}

	router.Route("/users", func(r chi.Router) {
		r.Use(routes.Auth.AuthMiddleware)

		r.Group(func(vr chi.Router) {
			vr.Use(middleware.RequirePermission(base, authz.ViewUsers))
			vr.Get("/", routes.Users.List)
			vr.Get("/{id}", routes.Users.Get)
		})

		r.Post("/", routes.Users.Create)
		r.Put("/{id}", routes.Users.Update)
		r.Delete("/{id}", routes.Users.Delete)
		r.Post("/{id}/inactivate", routes.Users.Inactivate)
		r.Post("/{id}/activate", routes.Users.Activate)
		r.Put("/{id}/permissions", routes.Users.SyncPermissions)
		r.Put("/{id}/profile-picture", routes.Users.SetProfilePicture)
	})
}
