// Package kv is the shared key/value and pub/sub adapter used by every
// replica. Consumers declare what they need here; the concrete backend is
// injected from cmd mains. Redis backs production; Memory backs tests and
// single-process runs, executing the same Lua scripts via gopher-lua so
// scripted atomic operations behave identically on both.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when the key or field is absent.
var ErrNotFound = errors.New("kv: not found")

// Z is one sorted-set member with its score.
type Z struct {
	Member string
	Score  float64
}

// Store is the full adapter contract. All mutations of shared state
// (credentials, bans, votes, rate limits) go through these operations;
// anything that must be atomic across multiple keys goes through Eval.
type Store interface {
	// Strings.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Hashes.
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HLen(ctx context.Context, key string) (int64, error)

	// Sorted sets.
	ZAdd(ctx context.Context, key string, members ...Z) error
	ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error)
	ZRevRank(ctx context.Context, key, member string) (int64, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error

	// Eval runs a Lua script atomically. Returned values follow Redis
	// conventions: int64, string, nil, or []interface{} of those.
	Eval(ctx context.Context, script string, keys []string, args []interface{}) (interface{}, error)

	// Pub/sub.
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handler func([]byte)) (unsubscribe func(), err error)

	Close() error
}
