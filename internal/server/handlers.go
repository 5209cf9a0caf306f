package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/marketpulse/marketpulse/internal/errors"
)

const (
	defaultPage  = 1
	defaultLimit = 100
	maxLimit     = 100
	maxQuoteIDs  = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Public market data, no credentials on the socket.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleListings(c echo.Context) error {
	page, err := intQuery(c, "page", defaultPage)
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit", defaultLimit)
	if err != nil {
		return err
	}
	if page < 1 {
		return errors.ValidationError("page must be >= 1")
	}
	if limit < 1 || limit > maxLimit {
		return errors.ValidationError(fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}

	assets, err := s.market.Listings(c.Request().Context(), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":  assets,
		"page":  page,
		"limit": limit,
	})
}

func (s *Server) handleAsset(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return errors.ValidationError("id must be a positive integer")
	}

	asset, err := s.market.Asset(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, asset)
}

func (s *Server) handleQuotes(c echo.Context) error {
	raw := c.QueryParam("ids")
	if raw == "" {
		return errors.ValidationError("ids is required")
	}

	parts := strings.Split(raw, ",")
	if len(parts) > maxQuoteIDs {
		return errors.ValidationError(fmt.Sprintf("at most %d ids per request", maxQuoteIDs))
	}

	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id < 1 {
			return errors.ValidationError("ids must be positive integers")
		}
		ids = append(ids, id)
	}

	quotes, err := s.market.Quotes(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"data": quotes})
}

func (s *Server) handleGlobalMetrics(c echo.Context) error {
	global, err := s.market.GlobalMetrics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, global)
}

func (s *Server) handleFearGreed(c echo.Context) error {
	reading, err := s.market.FearGreed(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reading)
}

func (s *Server) handleWSStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Stats())
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	// Blocks until the connection closes; cleanup happens inside.
	s.wsHandler.ServeConn(conn)
	return nil
}

func intQuery(c echo.Context, name string, defaultValue int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ValidationError(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}
