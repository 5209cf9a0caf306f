package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleOpenAPI serves a minimal OpenAPI 3 document describing the REST
// surface. The WebSocket protocol is documented in the description field
// since OpenAPI has no first-class notion of it.
func (s *Server) handleOpenAPI(c echo.Context) error {
	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "marketpulse",
			"version": "1.0.0",
			"description": "Cached market data API. Live pushes are available on /ws: send " +
				`{"type":"subscribe","assets":["btc"]} (1-50 symbols) or {"type":"unsubscribe","assets":[...]} ` +
				"(assets optional, omission unsubscribes everything); receive subscribed, unsubscribed, " +
				"price_update, market_update, and error frames.",
		},
		"paths": map[string]any{
			"/api/crypto/listings": map[string]any{
				"get": map[string]any{
					"summary": "Paginated asset listings",
					"parameters": []map[string]any{
						queryParam("page", "integer", "Page number, default 1"),
						queryParam("limit", "integer", "Page size, 1-100, default 100"),
					},
					"responses": okResponse("Asset page"),
				},
			},
			"/api/crypto/assets/{id}": map[string]any{
				"get": map[string]any{
					"summary": "Single asset by provider id",
					"parameters": []map[string]any{
						{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "integer"}},
					},
					"responses": okResponse("Asset"),
				},
			},
			"/api/crypto/quotes": map[string]any{
				"get": map[string]any{
					"summary": "Current quotes for a comma-separated id list",
					"parameters": []map[string]any{
						queryParam("ids", "string", "Comma-separated provider ids, max 100"),
					},
					"responses": okResponse("Quotes"),
				},
			},
			"/api/market/global-metrics": map[string]any{
				"get": map[string]any{"summary": "Market-wide aggregates", "responses": okResponse("Global metrics")},
			},
			"/api/market/fear-greed": map[string]any{
				"get": map[string]any{"summary": "Fear & greed index", "responses": okResponse("Fear & greed reading")},
			},
			"/api/ws/stats": map[string]any{
				"get": map[string]any{"summary": "Subscription registry snapshot", "responses": okResponse("Registry stats")},
			},
			"/health/live":  map[string]any{"get": map[string]any{"summary": "Liveness probe", "responses": okResponse("Liveness")}},
			"/health/ready": map[string]any{"get": map[string]any{"summary": "Readiness probe", "responses": okResponse("Readiness")}},
		},
	}
	return c.JSON(http.StatusOK, doc)
}

func queryParam(name, typ, description string) map[string]any {
	return map[string]any{
		"name":        name,
		"in":          "query",
		"description": description,
		"schema":      map[string]string{"type": typ},
	}
}

func okResponse(description string) map[string]any {
	return map[string]any{
		"200": map[string]any{"description": description},
	}
}
