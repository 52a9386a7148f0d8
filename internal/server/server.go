// Package server wires the HTTP surface: middleware, routes and lifecycle.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/sheve777/kanpai-sub002/internal/handlers"
	"github.com/sheve777/kanpai-sub002/pkg/health"
	"github.com/sheve777/kanpai-sub002/pkg/middleware"
)

// Config holds HTTP server settings
type Config struct {
	AppName      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigins []string
	AllowMethods []string
	// Channel secret for webhook signature verification. Empty disables the
	// webhook routes entirely.
	LineChannelSecret string
}

// Handlers bundles the route handlers the server mounts
type Handlers struct {
	Store        *handlers.StoreHandler
	Availability *handlers.AvailabilityHandler
	Reservation  *handlers.ReservationHandler
	Usage        *handlers.UsageHandler
	Report       *handlers.ReportHandler
	Webhook      *handlers.WebhookHandler
	Health       *health.Checker
}

// Server is the HTTP server
type Server struct {
	echo   *echo.Echo
	config Config
	logger ectologger.Logger
}

// New creates the server and mounts all routes
func New(cfg Config, h Handlers, logger ectologger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Server.IdleTimeout = cfg.IdleTimeout

	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}

	api := e.Group("/api")

	stores := api.Group("/stores/:store_id")
	h.Store.Register(stores)
	h.Availability.Register(stores.Group("/availability"))
	h.Reservation.Register(stores.Group("/reservations"))
	h.Usage.Register(stores.Group("/usage"))
	h.Report.RegisterStoreRoutes(stores.Group("/reports"))

	h.Report.RegisterAdminRoutes(api.Group("/reports"))

	if h.Webhook != nil && cfg.LineChannelSecret != "" {
		h.Webhook.Register(e.Group("/webhook/:store_id", middleware.LineSignature(cfg.LineChannelSecret)))
	}

	return &Server{
		echo:   e,
		config: cfg,
		logger: logger,
	}
}

// Start blocks serving HTTP until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Infof("HTTP server listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
