package wsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/adammasjid/ProjectTest/internal/domain"
	"github.com/adammasjid/ProjectTest/internal/platform/retry"
	"github.com/adammasjid/ProjectTest/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeHub is a minimal in-process stand-in for the question hub endpoint.
// It acks subscribe/unsubscribe frames and lets tests push updates or kill
// connections to provoke reconnects.
type fakeHub struct {
	upgrader websocket.Upgrader
	ackUnsub bool

	mu    sync.Mutex
	conns []*websocket.Conn

	frames       chan protocol.Message
	subscribes   chan int
	unsubscribes chan int
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		ackUnsub:     true,
		frames:       make(chan protocol.Message, 32),
		subscribes:   make(chan int, 8),
		unsubscribes: make(chan int, 8),
	}
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		message, err := protocol.Decode(payload)
		if err != nil {
			continue
		}
		h.frames <- message

		switch message.Type {
		case protocol.TypeSubscribe:
			h.subscribes <- message.QuestionID
			h.write(conn, protocol.Subscribed(message.QuestionID))
		case protocol.TypeUnsubscribe:
			h.unsubscribes <- message.QuestionID
			if h.ackUnsub {
				h.write(conn, protocol.Unsubscribed(message.QuestionID))
			}
		}
	}
}

func (h *fakeHub) write(conn *websocket.Conn, message protocol.Message) {
	payload, err := protocol.Encode(message)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.WriteMessage(websocket.TextMessage, payload)
}

// push sends a frame over the most recently accepted connection.
func (h *fakeHub) push(t *testing.T, message protocol.Message) {
	t.Helper()
	h.mu.Lock()
	require.NotEmpty(t, h.conns)
	conn := h.conns[len(h.conns)-1]
	h.mu.Unlock()
	h.write(conn, message)
}

// killConnections drops every accepted connection without a close frame.
func (h *fakeHub) killConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		conn.Close()
	}
	h.conns = nil
}

func (h *fakeHub) dialCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func testClient(t *testing.T, hub *fakeHub, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	opts = append([]Option{
		WithAckTimeout(2 * time.Second),
		WithRetryPolicy(retry.Policy{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond}),
	}, opts...)
	return New(url, opts...)
}

func awaitInt(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return 0
	}
}

func awaitUpdate(t *testing.T, client *Client) protocol.Message {
	t.Helper()
	select {
	case message := <-client.Updates():
		return message
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
		return protocol.Message{}
	}
}

func TestStartSubscribesAndReceivesPushes(t *testing.T) {
	hub := newFakeHub()
	client := testClient(t, hub)

	require.NoError(t, client.Start(context.Background(), 1))
	defer client.Stop(context.Background())

	assert.Equal(t, 1, awaitInt(t, hub.subscribes))
	assert.Equal(t, StateConnected, client.State())

	hub.push(t, protocol.QuestionUpdated(&domain.Question{ID: 1, Title: "updated"}))

	update := awaitUpdate(t, client)
	assert.Equal(t, protocol.TypeQuestionUpdated, update.Type)
	assert.Equal(t, "updated", update.Question.Title)
}

func TestIgnoresPushesForOtherQuestions(t *testing.T) {
	hub := newFakeHub()
	client := testClient(t, hub)

	require.NoError(t, client.Start(context.Background(), 1))
	defer client.Stop(context.Background())
	awaitInt(t, hub.subscribes)

	hub.push(t, protocol.QuestionUpdated(&domain.Question{ID: 99, Title: "other"}))
	hub.push(t, protocol.QuestionUpdated(&domain.Question{ID: 1, Title: "mine"}))

	update := awaitUpdate(t, client)
	assert.Equal(t, 1, update.QuestionID)
	assert.Equal(t, "mine", update.Question.Title)
}

func TestReconnectsAndResubscribesAfterDrop(t *testing.T) {
	hub := newFakeHub()
	client := testClient(t, hub)

	require.NoError(t, client.Start(context.Background(), 7))
	defer client.Stop(context.Background())
	awaitInt(t, hub.subscribes)

	hub.killConnections()

	// The client must come back on its own and subscribe again.
	assert.Equal(t, 7, awaitInt(t, hub.subscribes))

	hub.push(t, protocol.QuestionUpdated(&domain.Question{ID: 7, Title: "after reconnect"}))
	update := awaitUpdate(t, client)
	assert.Equal(t, "after reconnect", update.Question.Title)
	assert.Equal(t, StateConnected, client.State())
}

func TestSwitchUnsubscribesBeforeSubscribing(t *testing.T) {
	hub := newFakeHub()
	client := testClient(t, hub)

	require.NoError(t, client.Start(context.Background(), 1))
	defer client.Stop(context.Background())
	awaitInt(t, hub.subscribes)

	require.NoError(t, client.Switch(context.Background(), 2))

	assert.Equal(t, 1, awaitInt(t, hub.unsubscribes))
	assert.Equal(t, 2, awaitInt(t, hub.subscribes))

	hub.push(t, protocol.QuestionUpdated(&domain.Question{ID: 2, Title: "switched"}))
	update := awaitUpdate(t, client)
	assert.Equal(t, 2, update.QuestionID)
}

func TestSwitchToSameQuestionIsNoop(t *testing.T) {
	hub := newFakeHub()
	client := testClient(t, hub)

	require.NoError(t, client.Start(context.Background(), 1))
	defer client.Stop(context.Background())
	awaitInt(t, hub.subscribes)

	require.NoError(t, client.Switch(context.Background(), 1))
	assert.Empty(t, hub.unsubscribes)
}

func TestStopUnsubscribesAndClosesUpdates(t *testing.T) {
	hub := newFakeHub()
	client := testClient(t, hub)

	require.NoError(t, client.Start(context.Background(), 1))
	awaitInt(t, hub.subscribes)

	require.NoError(t, client.Stop(context.Background()))

	assert.Equal(t, 1, awaitInt(t, hub.unsubscribes))
	_, open := <-client.Updates()
	assert.False(t, open, "updates channel must be closed after Stop")
	assert.Equal(t, StateClosed, client.State())

	// Idempotent.
	assert.NoError(t, client.Stop(context.Background()))
}

func TestStopToleratesMissingUnsubscribeAck(t *testing.T) {
	hub := newFakeHub()
	hub.ackUnsub = false
	client := testClient(t, hub, WithAckTimeout(100*time.Millisecond))

	require.NoError(t, client.Start(context.Background(), 1))
	awaitInt(t, hub.subscribes)

	start := time.Now()
	require.NoError(t, client.Stop(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStopReturnsWhenConnectionDropsMidShutdown(t *testing.T) {
	hub := newFakeHub()
	hub.ackUnsub = false
	client := testClient(t, hub, WithAckTimeout(500*time.Millisecond))

	require.NoError(t, client.Start(context.Background(), 1))
	awaitInt(t, hub.subscribes)

	// Drop the connection while Stop waits for the withheld unsubscribe
	// ack. The read loop redials in the background; Stop must tear down
	// that fresh connection too instead of the one it started with.
	dropped := make(chan struct{})
	go func() {
		defer close(dropped)
		<-hub.unsubscribes
		hub.killConnections()
	}()

	stopped := make(chan error, 1)
	go func() { stopped <- client.Stop(context.Background()) }()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the connection dropped mid-shutdown")
	}
	<-dropped

	_, open := <-client.Updates()
	assert.False(t, open, "updates channel must be closed after Stop")
	assert.Equal(t, StateClosed, client.State())
}

func TestStartFailsWhenHubUnreachable(t *testing.T) {
	client := New("ws://127.0.0.1:1/questionshub")

	err := client.Start(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, client.State())
}
