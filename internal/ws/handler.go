// Package ws implements the per-connection message protocol: inbound
// subscribe/unsubscribe frames mutate the registry, scheduler announcements
// fan out as price_update and market_update frames.
package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/marketpulse/marketpulse/internal/domain"
	"github.com/marketpulse/marketpulse/internal/metrics"
	"github.com/marketpulse/marketpulse/internal/rooms"
	"github.com/marketpulse/marketpulse/internal/scheduler"
)

// Handler drives the protocol for every connection and turns scheduler
// announcements into outbound frames.
type Handler struct {
	registry *rooms.Registry[*Client]
	validate *validator.Validate
	clock    clockwork.Clock
}

// NewHandler creates a handler around the given registry.
func NewHandler(registry *rooms.Registry[*Client], clock clockwork.Clock) *Handler {
	return &Handler{
		registry: registry,
		validate: validator.New(),
		clock:    clock,
	}
}

// ServeConn owns conn until it closes: it registers a client, pumps inbound
// frames, and tears down all registry state on exit.
func (h *Handler) ServeConn(conn Conn) {
	client := newClient(conn, h.clock)
	metrics.WSConnectedClients.Inc()
	slog.Info("WebSocket client connected", "client_id", client.id)

	defer func() {
		h.registry.RemoveConnection(client)
		client.close()
		metrics.WSConnectedClients.Dec()
		slog.Info("WebSocket client disconnected", "client_id", client.id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleMessage(client, data)
	}
}

func (h *Handler) handleMessage(client *Client, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.send(frameError, errorFrame{Type: frameError, Error: "Invalid JSON"})
		return
	}

	switch msg.Type {
	case msgSubscribe:
		if err := h.validate.Struct(subscribePayload{Assets: msg.Assets}); err != nil {
			client.send(frameError, errorFrame{Type: frameError, Error: validationMessage(err)})
			return
		}
		applied := h.registry.Subscribe(client, msg.Assets)
		slog.Debug("Client subscribed", "client_id", client.id, "assets", applied)
		client.send(frameSubscribed, subscribedFrame{Type: frameSubscribed, Assets: applied})

	case msgUnsubscribe:
		if err := h.validate.Struct(unsubscribePayload{Assets: msg.Assets}); err != nil {
			client.send(frameError, errorFrame{Type: frameError, Error: validationMessage(err)})
			return
		}
		removed := h.registry.Unsubscribe(client, msg.Assets)
		slog.Debug("Client unsubscribed", "client_id", client.id, "assets", removed)
		client.send(frameUnsubscribed, unsubscribedFrame{Type: frameUnsubscribed, Assets: removed})

	default:
		client.send(frameError, errorFrame{Type: frameError, Error: "unknown message type: " + msg.Type})
	}
}

// HandleUpdate consumes a scheduler announcement and pushes frames to the
// interested connections. Registered with Scheduler.OnUpdate at wiring time.
func (h *Handler) HandleUpdate(update scheduler.Update) {
	switch update.Kind {
	case scheduler.KindListings:
		assets, ok := update.Payload.([]domain.Asset)
		if !ok {
			slog.Error("Unexpected listings payload type", "kind", update.Kind)
			return
		}
		h.broadcastPrices(assets)

	case scheduler.KindGlobalMetrics:
		global, ok := update.Payload.(domain.GlobalMetrics)
		if !ok {
			slog.Error("Unexpected global metrics payload type", "kind", update.Kind)
			return
		}
		h.broadcastMarket(global)
	}
	// Fear/greed has no wire frame; the refresh is observable via the cache
	// and the REST endpoint only.
}

func (h *Handler) broadcastPrices(assets []domain.Asset) {
	now := h.clock.Now().UnixMilli()

	for _, asset := range assets {
		subscribers := h.registry.SubscribersOf(strings.ToLower(asset.Symbol))
		if len(subscribers) == 0 {
			continue
		}

		frame := priceUpdateFrame{
			Type: framePriceUpdate,
			Data: priceUpdateData{
				ID:        asset.ID,
				Symbol:    asset.Symbol,
				Price:     asset.Price,
				Change24h: asset.Change24h,
				Volume24h: asset.Volume24h,
				Timestamp: now,
			},
		}
		data, err := json.Marshal(frame)
		if err != nil {
			slog.Error("Failed to marshal price update", "symbol", asset.Symbol, "error", err)
			continue
		}
		for _, client := range subscribers {
			client.sendRaw(framePriceUpdate, data)
		}
	}
}

func (h *Handler) broadcastMarket(global domain.GlobalMetrics) {
	subscribers := h.registry.AllUpdateSubscribers()
	if len(subscribers) == 0 {
		return
	}

	frame := marketUpdateFrame{
		Type: frameMarketUpdate,
		Data: marketUpdateData{
			TotalMarketCap: global.TotalMarketCap,
			TotalVolume24h: global.TotalVolume24h,
			BTCDominance:   global.BTCDominance,
			Timestamp:      h.clock.Now().UnixMilli(),
		},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal market update", "error", err)
		return
	}
	for _, client := range subscribers {
		client.sendRaw(frameMarketUpdate, data)
	}
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fieldErrs[0].Tag() {
		case "required":
			return "assets is required"
		case "min", "max":
			return "assets must contain between 1 and 50 symbols"
		default:
			return "assets contains invalid entries"
		}
	}
	return "invalid message"
}
