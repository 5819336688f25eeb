package relay

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cgp/crowdplay/internal/metrics"
	"github.com/cgp/crowdplay/internal/protocol"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second // must be < pongWait
	writeWait  = 10 * time.Second
	maxMsgSize = 64 * 1024
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Agents connect from anywhere; the stream is read-only broadcast.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans state updates out to agent WebSocket connections on this replica.
// All writes to a connection go through its send channel and writePump, so
// ping, broadcast and error frames never race.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*agentConn
	cache   *StateCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type agentConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewHub creates an empty hub over the replica's state cache.
func NewHub(cache *StateCache, m *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		conns:   make(map[string]*agentConn),
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// HandleAgentStream upgrades /agent/stream. The cached state, if any, is sent
// immediately so late joiners do not wait for the next tick.
func (h *Hub) HandleAgentStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("[Relay] agent upgrade failed", "error", err)
		return
	}

	c := &agentConn{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	n := len(h.conns)
	h.mu.Unlock()
	h.metrics.ConnectedAgents.Set(float64(n))
	h.logger.Info("[Relay] agent connected", "connId", c.id, "total", n)

	if state, tick, gameID, ok := h.cache.Get(); ok {
		if data, err := protocol.Encode(protocol.StateUpdate{TickID: tick, GameID: gameID, State: state}); err == nil {
			c.send <- data
		}
	}

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast queues one encoded frame on every connection. Slow consumers are
// dropped rather than allowed to stall the fan-out.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	conns := make([]*agentConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		select {
		case <-c.done:
		case c.send <- data:
		default:
			h.logger.Warn("[Relay] dropping slow agent connection", "connId", c.id)
			h.remove(c)
		}
	}
	h.metrics.StateBroadcasts.Inc()
}

// Count returns the number of open agent connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *agentConn) {
	h.mu.Lock()
	_, present := h.conns[c.id]
	delete(h.conns, c.id)
	n := len(h.conns)
	h.mu.Unlock()
	if present {
		h.metrics.ConnectedAgents.Set(float64(n))
	}
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards inbound frames. The stream is broadcast-only; anything an
// agent sends earns a NOT_SUPPORTED error frame.
func (h *Hub) readPump(c *agentConn) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		reply, err := protocol.Encode(protocol.ErrorMessage{
			Code:    protocol.CodeNotSupported,
			Message: "agent stream is read-only",
		})
		if err != nil {
			continue
		}
		select {
		case c.send <- reply:
		default:
		}
	}
}

func (h *Hub) writePump(c *agentConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
