// internal/server/server.go

// Package server exposes the Mini App HTTP API: identity validation,
// payment link creation, health and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"

	"stars-membership/internal/common/config"
	"stars-membership/internal/common/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	echo   *echo.Echo
	config *config.ServerConfig
	logger logger.Logger
}

func New(cfg *config.ServerConfig, handlers *Handlers, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Server.ReadTimeout = config.GetDuration(cfg.ReadTimeout)
	e.Server.WriteTimeout = config.GetDuration(cfg.WriteTimeout)
	if cfg.EnableCORS {
		e.Use(middleware.CORS())
	}

	e.POST("/api/validate-user", handlers.ValidateUser)
	e.POST("/api/create-payment-link", handlers.CreatePaymentLink)
	e.GET("/health", handlers.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{
		echo:   e,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "server"}),
	}
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("http server starting", map[string]interface{}{"addr": addr})

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
