package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/adammasjid/ProjectTest/internal/broadcast"
	"github.com/adammasjid/ProjectTest/internal/metrics"
	"github.com/adammasjid/ProjectTest/internal/protocol"
)

const maxFrameSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser clients connect from arbitrary origins
	},
}

// handleQuestionsHub upgrades the request and runs the read pump. Subscribe
// and unsubscribe frames are acked over the connection's writer; everything
// else the client receives arrives through the hub.
func (s *Server) handleQuestionsHub(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade websocket: %w", err)
	}
	ws.SetReadLimit(maxFrameSize)

	conn := broadcast.NewConn(ws, s.clock)
	metrics.HubConnectedClients.Inc()
	slog.Debug("Hub client connected", "conn_id", conn.ID())

	defer func() {
		s.hub.ConnectionClosed(conn)
		conn.Close()
		metrics.HubConnectedClients.Dec()
		slog.Debug("Hub client disconnected", "conn_id", conn.ID())
	}()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return nil //nolint:nilerr // read errors end the pump, not the request
		}

		message, err := protocol.Decode(payload)
		if err != nil {
			slog.Warn("Dropping malformed hub frame", "conn_id", conn.ID(), "error", err)
			continue
		}

		switch message.Type {
		case protocol.TypeSubscribe:
			s.hub.Subscribe(message.QuestionID, conn)
			s.ack(conn, protocol.Subscribed(message.QuestionID))
		case protocol.TypeUnsubscribe:
			s.hub.Unsubscribe(message.QuestionID, conn)
			s.ack(conn, protocol.Unsubscribed(message.QuestionID))
		default:
			slog.Warn("Dropping unexpected hub frame", "conn_id", conn.ID(), "type", message.Type)
		}
	}
}

func (s *Server) ack(conn *broadcast.Conn, message protocol.Message) {
	payload, err := protocol.Encode(message)
	if err != nil {
		return
	}
	if err := conn.Send(payload, s.config.PushSendTimeout); err != nil {
		slog.Debug("Failed to send ack", "conn_id", conn.ID(), "type", message.Type, "error", err)
	}
}
