package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/openapi.json", s.handleOpenAPI)

	// Market data (cache-first reads)
	s.echo.GET("/api/crypto/listings", s.handleListings)
	s.echo.GET("/api/crypto/assets/:id", s.handleAsset)
	s.echo.GET("/api/crypto/quotes", s.handleQuotes)
	s.echo.GET("/api/market/global-metrics", s.handleGlobalMetrics)
	s.echo.GET("/api/market/fear-greed", s.handleFearGreed)

	// Diagnostics
	s.echo.GET("/api/ws/stats", s.handleWSStats)

	// Persistent connections
	s.echo.GET("/ws", s.handleWebSocket)
}
