package kv

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// Redis implements Store on go-redis v9. Reconnection is handled by the
// driver's retry/backoff settings; callers see fail-fast errors during
// outages rather than blocking.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to the given redis:// URL and pings it once.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.PoolSize = 20
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 50 * time.Millisecond
	opts.MaxRetryBackoff = 2 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", opts.Addr, err)
	}

	slog.Info("[KV] Redis connected", "addr", opts.Addr, "db", opts.DB)
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}

func (r *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make([]interface{}, 0, len(fields)*2)
	for f, v := range fields {
		args = append(args, f, v)
	}
	return r.rdb.HSet(ctx, key, args...).Err()
}

func (r *Redis) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	return r.rdb.HSetNX(ctx, key, field, value).Result()
}

func (r *Redis) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := r.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.rdb.HGetAll(ctx, key).Result()
}

func (r *Redis) HDel(ctx context.Context, key string, fields ...string) error {
	return r.rdb.HDel(ctx, key, fields...).Err()
}

func (r *Redis) HLen(ctx context.Context, key string) (int64, error) {
	return r.rdb.HLen(ctx, key).Result()
}

func (r *Redis) ZAdd(ctx context.Context, key string, members ...Z) error {
	zs := make([]redis.Z, len(members))
	for i, m := range members {
		zs[i] = redis.Z{Score: m.Score, Member: m.Member}
	}
	return r.rdb.ZAdd(ctx, key, zs...).Err()
}

func (r *Redis) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	return r.rdb.ZIncrBy(ctx, key, incr, member).Result()
}

func (r *Redis) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	res, err := r.rdb.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Z, len(res))
	for i, z := range res {
		member, _ := z.Member.(string)
		out[i] = Z{Member: member, Score: z.Score}
	}
	return out, nil
}

func (r *Redis) ZRevRank(ctx context.Context, key, member string) (int64, error) {
	rank, err := r.rdb.ZRevRank(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, ErrNotFound
	}
	return rank, err
}

func (r *Redis) ZScore(ctx context.Context, key, member string) (float64, error) {
	score, err := r.rdb.ZScore(ctx, key, member).Result()
	if err == redis.Nil {
		return 0, ErrNotFound
	}
	return score, err
}

func (r *Redis) ZCard(ctx context.Context, key string) (int64, error) {
	return r.rdb.ZCard(ctx, key).Result()
}

func (r *Redis) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return r.rdb.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err()
}

func formatScore(f float64) string {
	switch {
	case f == negInf:
		return "-inf"
	case f == posInf:
		return "+inf"
	default:
		return fmt.Sprintf("%f", f)
	}
}

func (r *Redis) Eval(ctx context.Context, script string, keys []string, args []interface{}) (interface{}, error) {
	res, err := r.rdb.Eval(ctx, script, keys, args...).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return res, err
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe registers a handler for messages on a pub/sub channel and returns
// an unsubscribe function. Messages are delivered on a dedicated goroutine.
func (r *Redis) Subscribe(ctx context.Context, channel string, handler func([]byte)) (func(), error) {
	sub := r.rdb.Subscribe(ctx, channel)

	// Wait for subscription confirmation before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	ch := sub.Channel()
	go func() {
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
	}()

	return func() { sub.Close() }, nil
}
