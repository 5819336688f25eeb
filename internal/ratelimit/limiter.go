// Package ratelimit implements a per-agent token bucket shared by all relay
// replicas. The bucket lives in the KV store and is refilled and drained by a
// single atomic script, so concurrent replicas can't double-spend tokens.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cgp/crowdplay/internal/kv"
)

// Result of one rate-limit check.
type Result struct {
	Allowed      bool
	Remaining    int
	RetryAfterMS int
}

// tokenBucketScript refills min(burst, stored + elapsedSec*rps) tokens, then
// spends one if at least one is available. KEYS[1] is the bucket hash;
// ARGV = rps, burst, nowMs. Returns {allowed, remaining, retryAfterMs}.
// The TTL covers at least two full refill windows so idle buckets vanish.
const tokenBucketScript = `
local rps = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = burst
local last = now
local stored = redis.call('HGET', KEYS[1], 'tokens')
if stored then
  tokens = tonumber(stored)
  last = tonumber(redis.call('HGET', KEYS[1], 'lastMs'))
end

local elapsed = (now - last) / 1000.0
if elapsed < 0 then elapsed = 0 end
local refill = tokens + elapsed * rps
if refill > burst then refill = burst end

local allowed = 0
local retry = 0
if refill >= 1 then
  refill = refill - 1
  allowed = 1
else
  retry = math.ceil(((1 - refill) / rps) * 1000)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(refill), 'lastMs', tostring(now))
local windowMs = math.ceil((burst / rps) * 1000)
redis.call('PEXPIRE', KEYS[1], 2 * windowMs)

return {allowed, math.floor(refill), retry}
`

// Limiter checks agent requests against their plan's token bucket.
type Limiter struct {
	kv     kv.Store
	prefix string
	now    func() time.Time
}

// New creates a limiter on the given KV backend.
func New(store kv.Store) *Limiter {
	return &Limiter{kv: store, prefix: "crowdplay:rl:", now: time.Now}
}

// SetClock overrides the limiter clock. Test hook.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// Allow spends one token from the agent's bucket. rps and burst come from
// the agent's plan.
func (l *Limiter) Allow(ctx context.Context, agentID string, rps, burst int) (Result, error) {
	if rps <= 0 {
		rps = 1
	}
	if burst < rps {
		burst = rps
	}

	raw, err := l.kv.Eval(ctx, tokenBucketScript,
		[]string{l.prefix + agentID},
		[]interface{}{rps, burst, l.now().UnixMilli()})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %T", raw)
	}
	allowed, _ := reply[0].(int64)
	remaining, _ := reply[1].(int64)
	retry, _ := reply[2].(int64)

	return Result{
		Allowed:      allowed == 1,
		Remaining:    int(remaining),
		RetryAfterMS: int(retry),
	}, nil
}

// RetryAfterSeconds converts a retry delay to the whole seconds carried by
// the Retry-After header, rounding up and never below 1.
func RetryAfterSeconds(retryMS int) int {
	if retryMS <= 0 {
		return 1
	}
	secs := (retryMS + 999) / 1000
	if secs < 1 {
		secs = 1
	}
	return secs
}
