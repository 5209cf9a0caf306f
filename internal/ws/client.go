package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/marketpulse/marketpulse/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	messageBufferSize = 16
)

// Conn is the slice of *websocket.Conn the handler uses, so tests can
// substitute a fake duplex channel.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one connected WebSocket peer. All writes funnel through a
// buffered send channel drained by a single writer goroutine, so frame
// writes never interleave.
type Client struct {
	id       uuid.UUID
	conn     Conn
	clock    clockwork.Clock
	sendCh   chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClient(conn Conn, clock clockwork.Clock) *Client {
	c := &Client{
		id:     uuid.New(),
		conn:   conn,
		clock:  clock,
		sendCh: make(chan []byte, messageBufferSize),
		done:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

// ID returns the connection's identifier, used for logging.
func (c *Client) ID() uuid.UUID {
	return c.id
}

func (c *Client) writeLoop() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// send marshals frame and queues it, best-effort: a closed client or a full
// buffer drops the frame silently (a missed push is superseded by the next
// refresh).
func (c *Client) send(frameType string, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to marshal outbound frame", "type", frameType, "error", err)
		return
	}
	c.sendRaw(frameType, data)
}

func (c *Client) sendRaw(frameType string, data []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.sendCh <- data:
		metrics.WSFramesSent.WithLabelValues(frameType).Inc()
	default:
		metrics.WSFramesDropped.Inc()
	}
}

// close stops the writer goroutine and the underlying connection.
// Safe to call more than once.
func (c *Client) close() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	c.wg.Wait()
}
