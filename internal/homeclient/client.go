// Package homeclient maintains the back end's single outbound WebSocket to
// the relay. It authenticates with the shared secret, answers heartbeats,
// hands vote batches to the tick pipeline and pushes freshly decoded states.
// The connection is rebuilt with capped exponential backoff whenever it drops.
package homeclient

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cgp/crowdplay/internal/protocol"
)

// Connection lifecycle states.
const (
	StateDisconnected   = "disconnected"
	StateConnecting     = "connecting"
	StateAuthenticating = "authenticating"
	StateConnected      = "connected"
)

const (
	writeWait = 10 * time.Second
	readWait  = 120 * time.Second

	// Unsolicited heartbeat_ack cadence. The relay considers the home
	// connected while the last ack is younger than 90 s.
	ackInterval = 30 * time.Second

	backoffBase = 100 * time.Millisecond
	backoffCap  = 30 * time.Second
	jitterMax   = 500 * time.Millisecond
)

// BatchHandler consumes one drained vote batch. Called on its own goroutine
// so a slow tick pipeline never blocks the read loop.
type BatchHandler func(batch protocol.VoteBatch)

// Client is the home side of the relay bridge.
type Client struct {
	url     string
	secret  string
	gameID  string
	handler BatchHandler
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	state   string
	attempt int

	writeMu sync.Mutex

	dialer *websocket.Dialer
	rng    *rand.Rand
}

// New creates a client for the relay's /home/connect endpoint.
func New(url, secret, gameID string, handler BatchHandler, logger *slog.Logger) *Client {
	return &Client{
		url:     url,
		secret:  secret,
		gameID:  gameID,
		handler: handler,
		logger:  logger,
		state:   StateDisconnected,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s string) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run connects and serves until the context is cancelled. Each failed or
// dropped connection schedules a reconnect at base 100 ms, doubling per
// attempt, capped at 30 s, plus up to 500 ms of jitter. A successful
// authentication resets the backoff.
func (c *Client) Run(ctx context.Context) error {
	for {
		if n := c.attempts(); n > 0 {
			delay := c.backoff(n)
			c.logger.Info("[HomeClient] reconnecting", "attempt", n, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		established, err := c.connectAndServe(ctx)
		if established {
			c.setAttempts(0)
		}
		if err != nil {
			c.logger.Warn("[HomeClient] connection lost", "error", err)
			c.setAttempts(c.attempts() + 1)
			continue
		}
		// serve only returns nil on context cancellation
		return ctx.Err()
	}
}

func (c *Client) attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

func (c *Client) setAttempts(n int) {
	c.mu.Lock()
	c.attempt = n
	c.mu.Unlock()
}

func (c *Client) backoff(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	c.mu.Lock()
	jitter := time.Duration(c.rng.Int63n(int64(jitterMax)))
	c.mu.Unlock()
	return d + jitter
}

// connectAndServe reports whether the connection was fully established
// (dialed and authenticated) alongside the terminal error, so the caller can
// reset its backoff.
func (c *Client) connectAndServe(ctx context.Context) (bool, error) {
	c.setState(StateConnecting)
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return false, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.state = StateDisconnected
		c.mu.Unlock()
	}()

	// Cancellation must close the socket, or the read loop lingers until
	// its deadline.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	c.setState(StateAuthenticating)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(protocol.HomeAuth{Secret: c.secret}); err != nil {
		return false, fmt.Errorf("send auth: %w", err)
	}

	// The relay accepts silently; a bad secret comes back as an error
	// message followed by close 1008, surfaced in the read loop.
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
	c.logger.Info("[HomeClient] connected", "relay", c.url)

	done := make(chan struct{})
	defer close(done)
	go c.ackLoop(conn, done)

	for {
		if err := ctx.Err(); err != nil {
			return true, nil
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("read: %w", err)
		}
		c.dispatch(data)
	}
}

// ackLoop emits an unsolicited heartbeat_ack every 30 s so the relay's
// home-connected flag stays fresh even between relay-driven heartbeats.
func (c *Client) ackLoop(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(ackInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := c.write(protocol.HeartbeatAck{Timestamp: time.Now().UnixMilli()}); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("[HomeClient] dropping message", "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Heartbeat:
		if err := c.write(protocol.HeartbeatAck{Timestamp: m.Timestamp}); err != nil {
			c.logger.Warn("[HomeClient] heartbeat ack failed", "error", err)
		}

	case protocol.VoteBatch:
		if m.GameID != c.gameID {
			c.logger.Warn("[HomeClient] vote batch for wrong game", "gameId", m.GameID)
			return
		}
		go c.handler(m)

	case protocol.StateUpdate:
		// Loopback of our own push; nothing to do.

	case protocol.ErrorMessage:
		c.logger.Error("[HomeClient] relay error", "code", m.Code, "message", m.Message)

	default:
		c.logger.Warn("[HomeClient] dropping message", "type", fmt.Sprintf("%T", msg))
	}
}

// PushState sends a state_push when connected and silently drops otherwise;
// the next tick's push supersedes anything lost.
func (c *Client) PushState(ctx context.Context, tick int, gameID string, state *protocol.GameState) error {
	c.mu.Lock()
	connected := c.state == StateConnected && c.conn != nil
	c.mu.Unlock()
	if !connected {
		c.logger.Debug("[HomeClient] state push dropped, not connected", "tick", tick)
		return nil
	}
	return c.write(protocol.StatePush{TickID: tick, GameID: gameID, State: state})
}

func (c *Client) write(msg interface{}) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
