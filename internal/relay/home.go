package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cgp/crowdplay/internal/kv"
	"github.com/cgp/crowdplay/internal/metrics"
	"github.com/cgp/crowdplay/internal/protocol"
	"github.com/cgp/crowdplay/internal/votes"
)

const (
	// authWait bounds how long a fresh home socket may sit silent before
	// sending its secret.
	authWait = 10 * time.Second

	// heartbeatPeriod is the relay-driven heartbeat cadence; ackWindow is
	// how fresh the last ack must be for the home to count as connected.
	heartbeatPeriod = 30 * time.Second
	ackWindow       = 90 * time.Second
)

// HomeSession owns the trusted back-end ingress. At most one authenticated
// home connection is live; a newer one evicts the older.
type HomeSession struct {
	secret  string
	kv      kv.Store
	buffer  *votes.Buffer
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	lastAck time.Time
}

// NewHomeSession creates the ingress handler.
func NewHomeSession(secret string, store kv.Store, buffer *votes.Buffer, m *metrics.Metrics, logger *slog.Logger) *HomeSession {
	return &HomeSession{secret: secret, kv: store, buffer: buffer, metrics: m, logger: logger}
}

// Connected reports whether a home connection is live with a fresh ack.
func (h *HomeSession) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil && time.Since(h.lastAck) < ackWindow
}

// HandleHomeConnect upgrades /home/connect, authenticates the first frame
// against the shared secret and runs the session until the socket drops.
func (h *HomeSession) HandleHomeConnect(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		http.Error(w, "home ingress disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[Relay] home upgrade failed", "error", err)
		return
	}

	if !h.authenticate(conn) {
		data, _ := protocol.Encode(protocol.ErrorMessage{
			Code:    protocol.CodeAuthFailed,
			Message: "invalid home secret",
		})
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, data)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "auth failed"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	h.adopt(conn)
	h.logger.Info("[Relay] home client authenticated", "remote", r.RemoteAddr)
	h.metrics.HomeConnected.Set(1)

	done := make(chan struct{})
	go h.heartbeatLoop(conn, done)
	h.readLoop(conn)
	close(done)

	h.release(conn)
}

func (h *HomeSession) authenticate(conn *websocket.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(authWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	var auth protocol.HomeAuth
	if err := json.Unmarshal(data, &auth); err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(auth.Secret), []byte(h.secret)) == 1
}

// adopt makes conn the live home connection, dropping any predecessor.
func (h *HomeSession) adopt(conn *websocket.Conn) {
	h.mu.Lock()
	old := h.conn
	h.conn = conn
	h.lastAck = time.Now()
	h.mu.Unlock()
	if old != nil {
		h.logger.Info("[Relay] replacing previous home connection")
		old.Close()
	}
}

func (h *HomeSession) release(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
		h.metrics.HomeConnected.Set(0)
		h.logger.Info("[Relay] home client disconnected")
	}
	h.mu.Unlock()
	conn.Close()
}

func (h *HomeSession) readLoop(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		conn.SetReadDeadline(time.Now().Add(pongWait + ackWindow))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			h.logger.Warn("[Relay] dropping home message", "error", err)
			continue
		}

		switch m := msg.(type) {
		case protocol.StatePush:
			h.handleStatePush(ctx, conn, m)

		case protocol.HeartbeatAck:
			h.mu.Lock()
			if h.conn == conn {
				h.lastAck = time.Now()
			}
			h.mu.Unlock()

		case protocol.VotesRequest:
			h.flushVotes(ctx, conn, m.GameID, m.TickID)

		default:
			h.logger.Warn("[Relay] unexpected home message", "payload", string(data[:min(len(data), 64)]))
		}
	}
}

// handleStatePush republishes the state on the shared channel (which also
// refreshes this replica's cache via its own subscription), echoes it back,
// and immediately flushes buffered votes so the home client starts the next
// tick with a batch in hand.
func (h *HomeSession) handleStatePush(ctx context.Context, conn *websocket.Conn, m protocol.StatePush) {
	update := protocol.StateUpdate{TickID: m.TickID, GameID: m.GameID, State: m.State}
	data, err := protocol.Encode(update)
	if err != nil {
		h.logger.Error("[Relay] encode state update failed", "error", err)
		return
	}
	if err := h.kv.Publish(ctx, protocol.BroadcastChannel, data); err != nil {
		h.logger.Error("[Relay] publish state failed", "tick", m.TickID, "error", err)
		return
	}

	// Informational echo so the home can observe its own push landed.
	if err := h.write(conn, data); err != nil {
		h.logger.Warn("[Relay] state echo failed", "error", err)
	}

	h.flushVotes(ctx, conn, m.GameID, m.TickID)
}

func (h *HomeSession) flushVotes(ctx context.Context, conn *websocket.Conn, gameID string, tick int) {
	votes, err := h.buffer.Drain(ctx, gameID)
	if err != nil {
		h.logger.Error("[Relay] vote drain failed", "gameId", gameID, "error", err)
		return
	}
	if len(votes) == 0 {
		return
	}

	data, err := protocol.Encode(protocol.VoteBatch{TickID: tick, GameID: gameID, Votes: votes})
	if err != nil {
		h.logger.Error("[Relay] encode vote batch failed", "error", err)
		return
	}
	if err := h.write(conn, data); err != nil {
		h.logger.Warn("[Relay] vote batch send failed", "count", len(votes), "error", err)
		return
	}
	h.logger.Info("[Relay] vote batch flushed", "gameId", gameID, "tick", tick, "count", len(votes))
}

func (h *HomeSession) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(heartbeatPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			data, err := protocol.Encode(protocol.Heartbeat{Timestamp: time.Now().UnixMilli()})
			if err != nil {
				return
			}
			if err := h.write(conn, data); err != nil {
				return
			}
		}
	}
}

func (h *HomeSession) write(conn *websocket.Conn, data []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
