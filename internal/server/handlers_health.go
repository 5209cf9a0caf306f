package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

// Readiness means the refresh scheduler is running; until then the cache is
// cold and reads would hammer the provider.
func (s *Server) handleReadiness(c echo.Context) error {
	if !s.ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":       "unhealthy",
			"failed_check": "scheduler",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
