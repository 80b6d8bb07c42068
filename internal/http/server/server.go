// Package server assembles the operational HTTP server.
package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"userrepo/internal/config"
	"userrepo/internal/http/handler"
	"userrepo/internal/http/middleware"
)

// Registry is both where collectors register and what /metrics serves.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// Server wraps a fiber app serving /healthz, /health and /metrics.
type Server struct {
	app  *fiber.App
	addr string
	log  *slog.Logger
}

// New builds the server. backendName labels health responses.
func New(cfg config.OpsConfig, log *slog.Logger, backend handler.Pinger, backendName string, reg Registry) (*Server, error) {
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler(),
		DisableStartupMessage: true,
	})
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(prom.Handler())
	app.Use(middleware.Logger(log))

	handler.RegisterRoutes(app, backend, backendName, reg)

	return &Server{app: app, addr: ":" + cfg.Port, log: log}, nil
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App { return s.app }

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("ops_server_listening", slog.String("addr", s.addr))
	return s.app.Listen(s.addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
