// Package wsclient implements a reconnecting websocket client for the
// question hub. It keeps exactly one active subscription, survives dropped
// connections by redialling with backoff and re-subscribing, and delivers
// question pushes through a channel.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/adammasjid/ProjectTest/internal/platform/retry"
	"github.com/adammasjid/ProjectTest/internal/protocol"
)

// State describes the client's connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultAckTimeout  = 3 * time.Second
	updatesBufferSize  = 16
	ackBufferSize      = 2
	clientWriteTimeout = 5 * time.Second
)

var errClientClosed = errors.New("client is closed")

// Client maintains a single live subscription against the question hub.
// Safe for use by one controlling goroutine; Updates may be consumed
// concurrently.
type Client struct {
	url         string
	dialer      *websocket.Dialer
	clock       clockwork.Clock
	ackTimeout  time.Duration
	retryPolicy retry.Policy

	mu         sync.Mutex
	state      State
	questionID int
	conn       *websocket.Conn
	cancelRead context.CancelFunc

	updates chan protocol.Message
	acks    chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithClock injects the clock used for ack timeouts and backoff.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithAckTimeout bounds how long Switch and Stop wait for server acks.
func WithAckTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.ackTimeout = timeout }
}

// WithRetryPolicy overrides the reconnect backoff policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.retryPolicy = policy }
}

// New creates a client for the hub endpoint at url (ws:// or wss://).
func New(url string, opts ...Option) *Client {
	client := &Client{
		url:        url,
		dialer:     websocket.DefaultDialer,
		clock:      clockwork.NewRealClock(),
		ackTimeout: defaultAckTimeout,
		retryPolicy: retry.Policy{
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     15 * time.Second,
		},
		state:   StateDisconnected,
		updates: make(chan protocol.Message, updatesBufferSize),
		acks:    make(chan string, ackBufferSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Updates delivers questionUpdated and questionDeleted pushes for the
// currently subscribed question. The channel is closed by Stop.
func (c *Client) Updates() <-chan protocol.Message {
	return c.updates
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start dials the hub, subscribes to questionID and launches the read loop.
// The context governs the dial, the subscribe ack and all later reconnects.
func (c *Client) Start(ctx context.Context, questionID int) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot start client in state %s", state)
	}
	c.state = StateConnecting
	c.questionID = questionID
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect to question hub: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.writeMessage(protocol.Subscribe(questionID)); err != nil {
		conn.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.setState(StateConnected)

	// The read loop's context outlives Start so reconnect backoffs can be
	// cut short by Stop.
	readCtx, cancelRead := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelRead = cancelRead
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(readCtx)

	if err := c.awaitAck(ctx, protocol.TypeSubscribed); err != nil {
		return fmt.Errorf("subscribe not acknowledged: %w", err)
	}
	return nil
}

// Switch moves the subscription to newQuestionID. The old subscription is
// released first: the client waits for the unsubscribe ack (or the ack
// timeout) before subscribing to the new question, so the server never sees
// both subscriptions as intentional at once.
func (c *Client) Switch(ctx context.Context, newQuestionID int) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return errClientClosed
	}
	oldQuestionID := c.questionID
	c.mu.Unlock()

	if oldQuestionID == newQuestionID {
		return nil
	}

	c.drainAcks()
	if err := c.writeMessage(protocol.Unsubscribe(oldQuestionID)); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	if err := c.awaitAck(ctx, protocol.TypeUnsubscribed); err != nil {
		// Timed out acks are tolerated; the server drops the membership
		// when it processes the frame or when the connection closes.
		slog.Warn("Unsubscribe ack not received, continuing", "question_id", oldQuestionID, "error", err)
	}

	c.mu.Lock()
	c.questionID = newQuestionID
	c.mu.Unlock()

	if err := c.writeMessage(protocol.Subscribe(newQuestionID)); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return c.awaitAck(ctx, protocol.TypeSubscribed)
}

// Stop unsubscribes best-effort, waits for the ack up to the ack timeout
// and closes the connection. The updates channel is closed before Stop
// returns. Stop is idempotent.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	questionID := c.questionID
	conn := c.conn
	c.state = StateClosed
	c.mu.Unlock()

	if conn != nil {
		c.drainAcks()
		if err := c.writeMessage(protocol.Unsubscribe(questionID)); err == nil {
			if err := c.awaitAck(ctx, protocol.TypeUnsubscribed); err != nil {
				slog.Debug("Unsubscribe ack not received before stop", "question_id", questionID, "error", err)
			}
		}
	}

	// Closing done first keeps the read loop from treating the shutdown
	// as a lost connection.
	close(c.done)
	c.mu.Lock()
	cancelRead := c.cancelRead
	// The read loop may have reconnected while we waited for the ack;
	// close whatever connection is current, not the one from entry.
	conn = c.conn
	c.mu.Unlock()
	if cancelRead != nil {
		cancelRead()
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client stopping"),
			time.Now().Add(clientWriteTimeout))
		conn.Close()
	}
	c.wg.Wait()
	close(c.updates)
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if c.closing() {
				return
			}
			slog.Info("Question hub connection lost, reconnecting", "error", err)
			if err := c.reconnect(ctx); err != nil {
				slog.Error("Failed to reconnect to question hub", "error", err)
				c.setState(StateDisconnected)
				return
			}
			continue
		}

		message, err := protocol.Decode(payload)
		if err != nil {
			slog.Warn("Dropping malformed frame from question hub", "error", err)
			continue
		}

		c.dispatch(message)
	}
}

func (c *Client) dispatch(message protocol.Message) {
	switch message.Type {
	case protocol.TypeSubscribed, protocol.TypeUnsubscribed:
		select {
		case c.acks <- message.Type:
		default:
		}
	case protocol.TypeQuestionUpdated, protocol.TypeQuestionDeleted:
		c.mu.Lock()
		current := c.questionID
		c.mu.Unlock()
		if message.QuestionID != current {
			// Late push for a question we already switched away from.
			return
		}
		select {
		case c.updates <- message:
		case <-c.done:
		}
	default:
		slog.Debug("Ignoring unexpected frame type", "type", message.Type)
	}
}

// reconnect redials with backoff and re-subscribes to the current question.
func (c *Client) reconnect(ctx context.Context) error {
	c.setState(StateReconnecting)

	conn, err := retry.Do(ctx, c.clock, c.retryPolicy, func() (*websocket.Conn, error) {
		if c.closing() {
			return nil, &retry.PermanentError{Err: errClientClosed}
		}
		return c.dial(ctx)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closing() {
		// Stop won the race; it will not see this connection, so close
		// it here instead of handing the read loop a live socket.
		c.mu.Unlock()
		conn.Close()
		return errClientClosed
	}
	c.conn = conn
	questionID := c.questionID
	c.mu.Unlock()

	if err := c.writeMessage(protocol.Subscribe(questionID)); err != nil {
		return fmt.Errorf("failed to re-subscribe after reconnect: %w", err)
	}

	c.setState(StateConnected)
	slog.Info("Reconnected to question hub", "question_id", questionID)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil && resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (c *Client) writeMessage(message protocol.Message) error {
	payload, err := protocol.Encode(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// awaitAck blocks until the expected ack type arrives, the ack timeout
// elapses or the context is cancelled. Acks of other types are discarded.
func (c *Client) awaitAck(ctx context.Context, want string) error {
	timer := c.clock.NewTimer(c.ackTimeout)
	defer timer.Stop()

	for {
		select {
		case ackType := <-c.acks:
			if ackType == want {
				return nil
			}
		case <-timer.Chan():
			return fmt.Errorf("timed out waiting for %s ack", want)
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errClientClosed
		}
	}
}

func (c *Client) drainAcks() {
	for {
		select {
		case <-c.acks:
		default:
			return
		}
	}
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = state
}
