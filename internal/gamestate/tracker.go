// Package gamestate adapts decoder output for per-client queries and
// mediates vote submission. It also owns the back end's tick bookkeeping
// (pending turn, tick start time, capped turn history) shared between the
// tick processor and the per-agent service.
package gamestate

import (
	"sync"
	"time"

	"github.com/cgp/crowdplay/internal/protocol"
)

// HistoryCap bounds the turn history embedded in published states.
const HistoryCap = 20

// Tracker is the thread-safe record of where the game clock stands. The
// tick processor writes it; the service and home client read it.
type Tracker struct {
	mu        sync.RWMutex
	turn      int
	tickStart time.Time
	interval  time.Duration
	history   []protocol.TurnRecord
}

// NewTracker starts at pending turn 0.
func NewTracker(interval time.Duration) *Tracker {
	return &Tracker{interval: interval, tickStart: time.Now()}
}

// Begin marks the start of a new pending turn.
func (t *Tracker) Begin(turn int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turn = turn
	t.tickStart = now
}

// Pending returns the turn agents are currently voting for and when it
// started collecting votes.
func (t *Tracker) Pending() (int, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.turn, t.tickStart
}

// SecondsRemaining is the floor of the time left in the pending tick,
// clamped at zero.
func (t *Tracker) SecondsRemaining(now time.Time) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	remaining := t.interval - now.Sub(t.tickStart)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// Append records one completed turn, keeping at most HistoryCap entries.
func (t *Tracker) Append(rec protocol.TurnRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, rec)
	if len(t.history) > HistoryCap {
		t.history = t.history[len(t.history)-HistoryCap:]
	}
}

// History returns up to limit most-recent records, newest last. limit <= 0
// means all retained records.
func (t *Tracker) History(limit int) []protocol.TurnRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := len(t.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]protocol.TurnRecord, n)
	copy(out, t.history[len(t.history)-n:])
	return out
}
