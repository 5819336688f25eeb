// Package relay implements the public control-plane surface: HTTP
// registration and voting, the agent broadcast stream, the trusted home
// WebSocket ingress and the admin API. Many relay replicas may run at once;
// everything durable lives in the shared KV store and cross-replica fan-out
// rides a single pub/sub channel.
package relay

import (
	"sync"

	"github.com/cgp/crowdplay/internal/protocol"
)

// StateCache holds the last state document observed by this replica. It is
// deliberately process-local; replicas that have not yet seen a push answer
// GET /state with 503.
type StateCache struct {
	mu      sync.RWMutex
	state   *protocol.GameState
	tick    int
	gameID  string
	hasSeen bool
}

// Set replaces the cached document.
func (c *StateCache) Set(tick int, gameID string, state *protocol.GameState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.tick = tick
	c.gameID = gameID
	c.hasSeen = true
}

// Get returns the cached document, or ok=false before the first push.
func (c *StateCache) Get() (state *protocol.GameState, tick int, gameID string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.tick, c.gameID, c.hasSeen
}

// Tick returns the cached tick, which doubles as the pending tick agents are
// voting for. Zero before the first push.
func (c *StateCache) Tick() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}
