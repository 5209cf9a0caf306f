package ws

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/marketpulse/internal/domain"
	"github.com/marketpulse/marketpulse/internal/rooms"
	"github.com/marketpulse/marketpulse/internal/scheduler"
)

// fakeConn is an in-memory duplex stand-in for *websocket.Conn. Inbound
// frames are fed through a channel; written text frames are captured for
// assertions (pings are ignored).
type fakeConn struct {
	inbound chan []byte
	frames  chan []byte

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 8),
		frames:  make(chan []byte, 32),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.inbound
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, msg, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.TextMessage {
		f.frames <- data
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

type wireFrame struct {
	Type   string         `json:"type"`
	Assets []string       `json:"assets"`
	Error  string         `json:"error"`
	Data   map[string]any `json:"data"`
}

func nextFrame(t *testing.T, conn *fakeConn) wireFrame {
	t.Helper()
	select {
	case data := <-conn.frames:
		var frame wireFrame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return wireFrame{}
	}
}

func assertNoFrame(t *testing.T, conn *fakeConn) {
	t.Helper()
	select {
	case data := <-conn.frames:
		t.Fatalf("unexpected outbound frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

type testPeer struct {
	conn *fakeConn
	done chan struct{}
}

func connect(t *testing.T, h *Handler) *testPeer {
	t.Helper()
	p := &testPeer{conn: newFakeConn(), done: make(chan struct{})}
	go func() {
		h.ServeConn(p.conn)
		close(p.done)
	}()
	t.Cleanup(func() { p.disconnect(t) })
	return p
}

func (p *testPeer) send(t *testing.T, raw string) {
	t.Helper()
	select {
	case p.conn.inbound <- []byte(raw):
	case <-time.After(time.Second):
		t.Fatal("timed out feeding inbound frame")
	}
}

func (p *testPeer) disconnect(t *testing.T) {
	t.Helper()
	_ = p.conn.Close()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection teardown")
	}
}

func newTestHandler() (*Handler, *rooms.Registry[*Client]) {
	registry := rooms.NewRegistry[*Client]()
	return NewHandler(registry, clockwork.NewFakeClock()), registry
}

func TestHandler_SubscribeNormalizesAndConfirms(t *testing.T) {
	h, registry := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe","assets":["BTC","Eth"]}`)

	frame := nextFrame(t, p.conn)
	assert.Equal(t, "subscribed", frame.Type)
	assert.Equal(t, []string{"btc", "eth"}, frame.Assets)

	stats := registry.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, map[string]int{"btc": 1, "eth": 1}, stats.PerRoomCount)
}

func TestHandler_SubscribeOnlyNewSymbolsConfirmed(t *testing.T) {
	h, _ := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe","assets":["btc"]}`)
	nextFrame(t, p.conn)

	p.send(t, `{"type":"subscribe","assets":["BTC","eth"]}`)
	frame := nextFrame(t, p.conn)
	assert.Equal(t, []string{"eth"}, frame.Assets)
}

func TestHandler_InvalidJSON(t *testing.T) {
	h, registry := newTestHandler()
	p := connect(t, h)

	p.send(t, `{not json`)

	frame := nextFrame(t, p.conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "Invalid JSON", frame.Error)
	assertNoFrame(t, p.conn)

	// A malformed frame never mutates subscription state.
	assert.Equal(t, 0, registry.Stats().TotalConnections)
}

func TestHandler_SubscribeValidation(t *testing.T) {
	h, registry := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe"}`)
	frame := nextFrame(t, p.conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "assets is required", frame.Error)

	p.send(t, `{"type":"subscribe","assets":[]}`)
	frame = nextFrame(t, p.conn)
	assert.Equal(t, "error", frame.Type)

	assert.Equal(t, 0, registry.Stats().TotalConnections)
}

func TestHandler_SubscribeTooManyAssets(t *testing.T) {
	h, _ := newTestHandler()
	p := connect(t, h)

	assets := make([]string, 51)
	for i := range assets {
		assets[i] = "sym"
	}
	msg, err := json.Marshal(map[string]any{"type": "subscribe", "assets": assets})
	require.NoError(t, err)

	p.send(t, string(msg))
	frame := nextFrame(t, p.conn)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "assets must contain between 1 and 50 symbols", frame.Error)
}

func TestHandler_UnknownMessageType(t *testing.T) {
	h, _ := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"ping"}`)
	frame := nextFrame(t, p.conn)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Error, "unknown message type")
}

func TestHandler_UnsubscribeAll(t *testing.T) {
	h, registry := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe","assets":["btc","eth"]}`)
	nextFrame(t, p.conn)

	// Omitted assets means drop everything.
	p.send(t, `{"type":"unsubscribe"}`)
	frame := nextFrame(t, p.conn)
	assert.Equal(t, "unsubscribed", frame.Type)
	assert.ElementsMatch(t, []string{"btc", "eth"}, frame.Assets)

	stats := registry.Stats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.Equal(t, 0, stats.TotalRooms)
}

func TestHandler_UnsubscribePartial(t *testing.T) {
	h, registry := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe","assets":["btc","eth"]}`)
	nextFrame(t, p.conn)

	p.send(t, `{"type":"unsubscribe","assets":["BTC"]}`)
	frame := nextFrame(t, p.conn)
	assert.Equal(t, "unsubscribed", frame.Type)
	assert.Equal(t, []string{"btc"}, frame.Assets)

	assert.Equal(t, map[string]int{"eth": 1}, registry.Stats().PerRoomCount)
}

func TestHandler_PriceUpdatesRoutePerRoom(t *testing.T) {
	h, _ := newTestHandler()
	p1 := connect(t, h)
	p2 := connect(t, h)

	p1.send(t, `{"type":"subscribe","assets":["btc"]}`)
	nextFrame(t, p1.conn)
	p2.send(t, `{"type":"subscribe","assets":["eth"]}`)
	nextFrame(t, p2.conn)

	h.HandleUpdate(scheduler.Update{
		Kind: scheduler.KindListings,
		Payload: []domain.Asset{
			{ID: 1, Symbol: "BTC", Price: 42000, Change24h: -1.2, Volume24h: 2.5e10},
			{ID: 1027, Symbol: "ETH", Price: 2200},
			{ID: 5426, Symbol: "SOL", Price: 150},
		},
	})

	frame := nextFrame(t, p1.conn)
	assert.Equal(t, "price_update", frame.Type)
	assert.Equal(t, "BTC", frame.Data["symbol"])
	assert.Equal(t, 42000.0, frame.Data["price"])
	assert.Equal(t, -1.2, frame.Data["change24h"])
	assertNoFrame(t, p1.conn)

	frame = nextFrame(t, p2.conn)
	assert.Equal(t, "price_update", frame.Type)
	assert.Equal(t, "ETH", frame.Data["symbol"])
	assertNoFrame(t, p2.conn)
}

func TestHandler_MarketUpdateReachesAllSubscribers(t *testing.T) {
	h, _ := newTestHandler()
	subscribed := connect(t, h)
	idle := connect(t, h)

	subscribed.send(t, `{"type":"subscribe","assets":["btc"]}`)
	nextFrame(t, subscribed.conn)

	h.HandleUpdate(scheduler.Update{
		Kind:    scheduler.KindGlobalMetrics,
		Payload: domain.GlobalMetrics{TotalMarketCap: 1.6e12, BTCDominance: 52.5},
	})

	frame := nextFrame(t, subscribed.conn)
	assert.Equal(t, "market_update", frame.Type)
	assert.Equal(t, 1.6e12, frame.Data["totalMarketCap"])
	assert.Equal(t, 52.5, frame.Data["btcDominance"])

	// A connection without subscriptions is not in the all-updates room.
	assertNoFrame(t, idle.conn)
}

func TestHandler_FearGreedUpdateHasNoFrame(t *testing.T) {
	h, _ := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe","assets":["btc"]}`)
	nextFrame(t, p.conn)

	h.HandleUpdate(scheduler.Update{
		Kind:    scheduler.KindFearGreed,
		Payload: domain.FearGreedReading{Value: 25},
	})
	assertNoFrame(t, p.conn)
}

func TestHandler_MismatchedPayloadIsIgnored(t *testing.T) {
	h, _ := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe","assets":["btc"]}`)
	nextFrame(t, p.conn)

	h.HandleUpdate(scheduler.Update{Kind: scheduler.KindListings, Payload: "bogus"})
	assertNoFrame(t, p.conn)
}

func TestHandler_DisconnectCleansRegistry(t *testing.T) {
	h, registry := newTestHandler()
	p := connect(t, h)

	p.send(t, `{"type":"subscribe","assets":["btc","eth"]}`)
	nextFrame(t, p.conn)
	require.Equal(t, 1, registry.Stats().TotalConnections)

	p.disconnect(t)

	stats := registry.Stats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.Equal(t, 0, stats.TotalRooms)
	assert.Empty(t, registry.AllUpdateSubscribers())
}

func TestClient_SendAfterCloseIsDropped(t *testing.T) {
	conn := newFakeConn()
	client := newClient(conn, clockwork.NewFakeClock())
	client.close()

	// Must not panic or block.
	client.send("error", errorFrame{Type: "error", Error: "x"})
	client.sendRaw("price_update", []byte(`{}`))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	client := newClient(conn, clockwork.NewFakeClock())
	client.close()
	client.close()
}
