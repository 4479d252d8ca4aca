package broadcast

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Conn is one live logical client connection. Its ID is the opaque handle
// group membership is keyed by; a transport-level reconnect produces a new
// Conn with a new ID, so subscriptions never carry over implicitly.
type Conn struct {
	id     uuid.UUID
	writer *clientWriter
}

// NewConn wraps an upgraded websocket connection and starts its writer.
func NewConn(ws *websocket.Conn, clock clockwork.Clock) *Conn {
	return &Conn{
		id:     uuid.New(),
		writer: newClientWriter(ws, clock),
	}
}

// ID returns the stable handle for this connection.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Send enqueues a message for delivery, waiting at most timeout.
func (c *Conn) Send(msg []byte, timeout time.Duration) error {
	return c.writer.enqueue(msg, timeout)
}

// Close tears down the writer and the underlying transport.
func (c *Conn) Close() {
	c.writer.stop()
}

// CloseGraceful sends a close frame with reason before tearing down.
func (c *Conn) CloseGraceful(reason string) {
	c.writer.stopGraceful(reason)
}
