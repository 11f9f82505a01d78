package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"mail-agent/backend/internal/api"
	"mail-agent/backend/internal/config"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/internal/mcp"
	"mail-agent/backend/internal/tls"
)

const serviceName = "mail-agent"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Info("Configuration loaded",
			"environment", cfg.Environment,
			"db_driver", cfg.DB.Driver,
			"smtp_mode", cfg.SMTP.Mode,
			"directory_mode", cfg.Directory.Mode,
			"config_file", configPath,
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func newEcho(cfg *config.Config, a *app, logger *logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				args = append(args, "error", v.Error)
			}
			logger.Info("request", args...)
			return nil
		},
	}))

	// Register auth handlers
	e.GET("/auth/login", echo.WrapHandler(http.HandlerFunc(a.auth.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(a.auth.CallbackHandler)))
	e.POST("/auth/logout", echo.WrapHandler(http.HandlerFunc(a.auth.LogoutHandler)))

	srv := api.NewServer(a.coordinator, a.store, a.notifier, a.provisioner, a.auth, logger)
	api.RegisterPublicHandlers(e, srv)

	// Everything else requires a session
	requireAuth := echo.WrapMiddleware(a.auth.RequireAuth)
	protected := e.Group("", requireAuth)
	api.RegisterHandlers(protected, srv)

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(a.coordinator, a.store, "2.0.0")
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(mcpHandlers), requireAuth)
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers), requireAuth)

	// OpenAPI spec and Swagger UI
	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Server.PublicURL)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler("/openapi.yaml")))

	return e
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Starting Mail Agent Service")

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		return err
	}
	defer a.Close()

	e := newEcho(cfg, a, logger)

	addr := cfg.Server.Addr
	if cfg.TLS.Enable {
		addr = cfg.Server.TLSAddr
		generated, err := tls.EnsureCertificate(cfg.TLS)
		if err != nil {
			logger.Error("TLS certificate unavailable", "error", err)
			return err
		}
		if generated {
			logger.Warn("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
		}
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
			return err
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
