// Package votes aggregates per-tick votes in the shared KV store. The shape
// is a hash keyed by agent id (last write wins, at most one vote per agent
// per tick) plus a tally sorted set and an earliest-timestamp hash used for
// tie-breaks. All three structures are mutated by one atomic script.
package votes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cgp/crowdplay/internal/kv"
	"github.com/cgp/crowdplay/internal/protocol"
)

// DefaultTTL is how long vote keys survive if never cleared.
const DefaultTTL = time.Hour

// recordVoteScript replaces an agent's vote for (game, tick). On replacement
// the previous action's tally is decremented, and if the retracted vote owned
// that action's earliest timestamp the minimum is recomputed from the vote
// hash (bounded: one tick's votes). Identical (agent, action, ts) is a no-op.
//
// KEYS: votes hash, tally zset, earliest-ts hash.
// ARGV: agentId, action, timestampMs, ttlSec.
const recordVoteScript = `
local agent = ARGV[1]
local action = ARGV[2]
local ts = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local old = redis.call('HGET', KEYS[1], agent)
if old then
  local sep = string.find(old, '|', 1, true)
  local oldAction = string.sub(old, 1, sep - 1)
  local oldTs = tonumber(string.sub(old, sep + 1))
  if oldAction == action and oldTs == ts then
    return 0
  end

  local remaining = tonumber(redis.call('ZINCRBY', KEYS[2], -1, oldAction))
  if remaining <= 0 then
    redis.call('ZREM', KEYS[2], oldAction)
    redis.call('HDEL', KEYS[3], oldAction)
  else
    local first = tonumber(redis.call('HGET', KEYS[3], oldAction))
    if first == oldTs then
      local min = nil
      local entries = redis.call('HGETALL', KEYS[1])
      for i = 1, #entries, 2 do
        if entries[i] ~= agent then
          local v = entries[i + 1]
          local s = string.find(v, '|', 1, true)
          if string.sub(v, 1, s - 1) == oldAction then
            local vts = tonumber(string.sub(v, s + 1))
            if min == nil or vts < min then min = vts end
          end
        end
      end
      if min then
        redis.call('HSET', KEYS[3], oldAction, tostring(min))
      else
        redis.call('HDEL', KEYS[3], oldAction)
      end
    end
  end
end

redis.call('HSET', KEYS[1], agent, action .. '|' .. tostring(ts))
redis.call('ZINCRBY', KEYS[2], 1, action)
local cur = redis.call('HGET', KEYS[3], action)
if (not cur) or ts < tonumber(cur) then
  redis.call('HSET', KEYS[3], action, tostring(ts))
end

redis.call('EXPIRE', KEYS[1], ttl)
redis.call('EXPIRE', KEYS[2], ttl)
redis.call('EXPIRE', KEYS[3], ttl)
return 1
`

// Tally is the aggregate for one (game, tick).
type Tally struct {
	WinningAction string
	VoteCounts    map[string]int
	TotalVotes    int
}

// Aggregator stores and tallies votes.
type Aggregator struct {
	kv  kv.Store
	ttl time.Duration
}

// New creates an aggregator with the default 1h key TTL.
func New(store kv.Store) *Aggregator {
	return &Aggregator{kv: store, ttl: DefaultTTL}
}

func votesKey(gameID string, tick int) string {
	return fmt.Sprintf("crowdplay:votes:%s:%d", gameID, tick)
}

func tallyKey(gameID string, tick int) string {
	return fmt.Sprintf("crowdplay:tally:%s:%d", gameID, tick)
}

func firstKey(gameID string, tick int) string {
	return fmt.Sprintf("crowdplay:tallyFirst:%s:%d", gameID, tick)
}

// RecordVote stores one agent's vote for (gameID, tick). Last write wins; at
// most one vote per agent per tick survives.
func (a *Aggregator) RecordVote(ctx context.Context, gameID string, tick int, agentID, action string, ts int64) error {
	if !protocol.ValidAction(action) {
		return fmt.Errorf("invalid action %q", action)
	}
	_, err := a.kv.Eval(ctx, recordVoteScript,
		[]string{votesKey(gameID, tick), tallyKey(gameID, tick), firstKey(gameID, tick)},
		[]interface{}{agentID, action, ts, int(a.ttl.Seconds())})
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}

// TallyVotes reads the tally in descending count order. Ties break by
// earliest timestamp ascending. With no votes the winner falls back to "a".
func (a *Aggregator) TallyVotes(ctx context.Context, gameID string, tick int) (Tally, error) {
	entries, err := a.kv.ZRevRangeWithScores(ctx, tallyKey(gameID, tick), 0, -1)
	if err != nil {
		return Tally{}, fmt.Errorf("read tally: %w", err)
	}
	if len(entries) == 0 {
		return Tally{
			WinningAction: protocol.FallbackAction,
			VoteCounts:    map[string]int{},
		}, nil
	}

	firsts, err := a.kv.HGetAll(ctx, firstKey(gameID, tick))
	if err != nil {
		return Tally{}, fmt.Errorf("read earliest timestamps: %w", err)
	}

	counts := make(map[string]int, len(entries))
	total := 0
	for _, e := range entries {
		counts[e.Member] = int(e.Score)
		total += int(e.Score)
	}

	// Stable winner: highest count, then earliest first-vote timestamp.
	sorted := make([]kv.Z, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return firstTS(firsts, sorted[i].Member) < firstTS(firsts, sorted[j].Member)
	})

	return Tally{
		WinningAction: sorted[0].Member,
		VoteCounts:    counts,
		TotalVotes:    total,
	}, nil
}

func firstTS(firsts map[string]string, action string) int64 {
	raw, ok := firsts[action]
	if !ok {
		return int64(1) << 62
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return int64(1) << 62
	}
	return ts
}

// ClearVotes deletes all keys for (gameID, tick).
func (a *Aggregator) ClearVotes(ctx context.Context, gameID string, tick int) error {
	return a.kv.Del(ctx, votesKey(gameID, tick), tallyKey(gameID, tick), firstKey(gameID, tick))
}

// Votes returns the raw vote hash, one entry per agent. Used by tests and
// the game-state service's history view.
func (a *Aggregator) Votes(ctx context.Context, gameID string, tick int) (map[string]protocol.Vote, error) {
	raw, err := a.kv.HGetAll(ctx, votesKey(gameID, tick))
	if err != nil {
		return nil, fmt.Errorf("read votes: %w", err)
	}
	out := make(map[string]protocol.Vote, len(raw))
	for agent, v := range raw {
		action, ts, ok := splitVote(v)
		if !ok {
			continue
		}
		out[agent] = protocol.Vote{AgentID: agent, Action: action, Timestamp: ts}
	}
	return out, nil
}

func splitVote(v string) (string, int64, bool) {
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
