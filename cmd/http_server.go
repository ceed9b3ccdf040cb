package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/auth"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/password"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport/middleware"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport/rest"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport/swagger"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	app, err := newApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := swagger.Load(ctx); err != nil {
		app.Logger.Warn("embedded openapi document is invalid", "error", err)
	}

	router := chi.NewRouter()
	setupRoutes(ctx, router, app)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		app.Logger.Info("starting HTTP server", "address", addr, "version", Version)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		app.Logger.Info("received signal, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("server failed to start", "error", err)
			app.Close()
			os.Exit(1)
		}
	}

	app.Logger.Info("server stopped")
}

func setupRoutes(ctx context.Context, router *chi.Mux, app *application) {
	cfg := app.Config
	base := transport.NewBaseHandler(app.Logger)

	routes := rest.Routes{
		Health: rest.NewHealthHandler(app.DB, serviceName, Version),
		Auth: auth.NewHandler(base, app.Auth, app.Users.URLs(), auth.CookieConfig{
			Secure: cfg.Security.CookieSecure,
			MaxAge: cfg.Security.RefreshTokenDuration,
		}),
		Users:          user.NewHandler(base, app.Users),
		Password:       password.NewHandler(base, app.Ledger, cfg.Security.ExposeResetToken),
		AllowedOrigins: cfg.Server.Origins(),
	}
	if cfg.Observability.Metrics.Enabled {
		routes.MetricsPath = cfg.Observability.Metrics.Path
	}
	if app.Revocations != nil {
		go app.Revocations.Run(ctx, time.Minute)
	}
	if cfg.RateLimit.Enabled {
		var limitOpts []middleware.RateLimitOption
		if cfg.RateLimit.TrustProxy {
			limitOpts = append(limitOpts, middleware.WithTrustedProxy())
		}
		limiter := middleware.NewRateLimiter(base, cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, limitOpts...)
		go limiter.Run(ctx)
		routes.CredentialLimiter = limiter
	}

	rest.RegisterAllRoutes(router, routes, app.Logger)
	logRoutes(router, app.Logger)
}

func logRoutes(router chi.Routes, lg *slog.Logger) {
	_ = chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		lg.Debug("route registered", "method", method, "route", route)
		return nil
	})
}
