package votes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cgp/crowdplay/internal/kv"
	"github.com/cgp/crowdplay/internal/protocol"
)

// bufferTTL bounds how long a parked vote survives with nothing draining it.
const bufferTTL = time.Hour

// drainScript reads and deletes the vote hash in one step, so concurrent
// consumers never hand the same vote downstream twice.
const drainScript = `
local votes = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
return votes
`

// Buffer parks agent votes in the shared KV store between the relay's intake
// and the tick pipeline. One hash per game, keyed by agent id, so a later
// vote from the same agent overwrites the earlier one. The relay writes it;
// whoever feeds the aggregator (home session or server-mode backend) drains.
type Buffer struct {
	kv kv.Store
}

// NewBuffer creates a buffer on the given KV backend.
func NewBuffer(store kv.Store) *Buffer {
	return &Buffer{kv: store}
}

func bufferKey(gameID string) string {
	return "crowdplay:relay:votes:" + gameID
}

// Put records or replaces an agent's buffered vote and refreshes the hash
// TTL, so an undrained buffer expires rather than growing forever.
func (b *Buffer) Put(ctx context.Context, gameID, agentID, action string, ts int64) error {
	key := bufferKey(gameID)
	fields := map[string]string{agentID: action + "|" + strconv.FormatInt(ts, 10)}
	if err := b.kv.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("buffer vote: %w", err)
	}
	if err := b.kv.Expire(ctx, key, bufferTTL); err != nil {
		return fmt.Errorf("buffer vote ttl: %w", err)
	}
	return nil
}

// Drain atomically removes and returns all buffered votes for a game.
func (b *Buffer) Drain(ctx context.Context, gameID string) ([]protocol.Vote, error) {
	raw, err := b.kv.Eval(ctx, drainScript, []string{bufferKey(gameID)}, nil)
	if err != nil {
		return nil, fmt.Errorf("drain votes: %w", err)
	}

	flat, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("drain votes: unexpected reply %T", raw)
	}
	votes := make([]protocol.Vote, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		agent, _ := flat[i].(string)
		value, _ := flat[i+1].(string)
		action, ts, ok := splitBuffered(value)
		if !ok || agent == "" {
			continue
		}
		votes = append(votes, protocol.Vote{AgentID: agent, Action: action, Timestamp: ts})
	}
	return votes, nil
}

// Size reports how many votes are waiting.
func (b *Buffer) Size(ctx context.Context, gameID string) (int, error) {
	n, err := b.kv.HLen(ctx, bufferKey(gameID))
	if err != nil {
		return 0, fmt.Errorf("buffer size: %w", err)
	}
	return int(n), nil
}

func splitBuffered(v string) (string, int64, bool) {
	for i := 0; i < len(v); i++ {
		if v[i] == '|' {
			ts, err := strconv.ParseInt(v[i+1:], 10, 64)
			if err != nil {
				return "", 0, false
			}
			return v[:i], ts, true
		}
	}
	return "", 0, false
}
