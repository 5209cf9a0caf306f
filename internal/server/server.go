// Package server exposes the HTTP surface: cache-first REST reads, the
// WebSocket upgrade endpoint, health checks, metrics, and the API document.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/errors"
	"github.com/marketpulse/marketpulse/internal/rooms"
	"github.com/marketpulse/marketpulse/internal/ws"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	market    *MarketService
	wsHandler *ws.Handler
	registry  *rooms.Registry[*ws.Client]
	ready     func() bool
	startTime time.Time
}

// New wires the HTTP server. ready reports whether the refresh scheduler is
// running; it backs the readiness probe.
func New(cfg *config.Config, market *MarketService, wsHandler *ws.Handler, registry *rooms.Registry[*ws.Client], ready func() bool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		market:    market,
		wsHandler: wsHandler,
		registry:  registry,
		ready:     ready,
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

// Start blocks serving HTTP until Shutdown or a listen error.
func (s *Server) Start() error {
	err := s.echo.Start(":" + s.config.Port)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
