package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringsAndTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.UnixMilli(1_000_000)
	m.SetClock(func() time.Time { return base })

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	m.SetClock(func() time.Time { return base.Add(2 * time.Minute) })
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.SetNX(ctx, "k", "first", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "k", "second", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestHashes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))

	v, err := m.HGet(ctx, "h", "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = m.HGet(ctx, "h", "zz")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	n, err := m.HLen(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, m.HDel(ctx, "h", "a"))
	all, err = m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, all)
}

func TestSortedSets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.ZAdd(ctx, "z",
		Z{Member: "low", Score: 1},
		Z{Member: "high", Score: 9},
		Z{Member: "mid", Score: 5},
	))

	entries, err := m.ZRevRangeWithScores(ctx, "z", 0, -1)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "high", entries[0].Member)
	assert.Equal(t, "mid", entries[1].Member)
	assert.Equal(t, "low", entries[2].Member)

	entries, err = m.ZRevRangeWithScores(ctx, "z", 0, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	rank, err := m.ZRevRank(ctx, "z", "mid")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	score, err := m.ZScore(ctx, "z", "high")
	require.NoError(t, err)
	assert.Equal(t, 9.0, score)

	card, err := m.ZCard(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(3), card)

	total, err := m.ZIncrBy(ctx, "z", 3, "low")
	require.NoError(t, err)
	assert.Equal(t, 4.0, total)

	require.NoError(t, m.ZRemRangeByScore(ctx, "z", 0, 4.5))
	card, err = m.ZCard(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)
}

func TestSortedSetTieBreaksLexAscending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.ZAdd(ctx, "z",
		Z{Member: "beta", Score: 5},
		Z{Member: "alpha", Score: 5},
	))
	entries, err := m.ZRevRangeWithScores(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "alpha", entries[0].Member)
	assert.Equal(t, "beta", entries[1].Member)
}

func TestPubSub(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got [][]byte
	unsubscribe, err := m.Subscribe(ctx, "ch", func(payload []byte) {
		got = append(got, payload)
	})
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, "ch", []byte("one")))
	require.NoError(t, m.Publish(ctx, "other", []byte("ignored")))
	require.NoError(t, m.Publish(ctx, "ch", []byte("two")))

	require.Len(t, got, 2)
	assert.Equal(t, "one", string(got[0]))
	assert.Equal(t, "two", string(got[1]))

	unsubscribe()
	require.NoError(t, m.Publish(ctx, "ch", []byte("three")))
	assert.Len(t, got, 2)
}

func TestEvalRunsScriptsAtomically(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	res, err := m.Eval(ctx, `
		redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
		local v = redis.call('HGET', KEYS[1], ARGV[1])
		return v
	`, []string{"h"}, []interface{}{"field", "value"})
	require.NoError(t, err)
	assert.Equal(t, "value", res)
}

func TestEvalReturnsTablesAsSlices(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	res, err := m.Eval(ctx, `return {1, 'two', 3}`, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), "two", int64(3)}, res)
}

func TestEvalHGetAllReturnsFlatPairs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.HSet(ctx, "h", map[string]string{"b": "2", "a": "1"}))

	res, err := m.Eval(ctx, `return redis.call('HGETALL', KEYS[1])`, []string{"h"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "1", "b", "2"}, res)
}

func TestEvalMissingValuesAreFalsy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	res, err := m.Eval(ctx, `
		local v = redis.call('GET', KEYS[1])
		if v then return 1 end
		return 0
	`, []string{"nope"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res)
}

func TestEvalUnsupportedCommandErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Eval(ctx, `return redis.call('GEOADD', KEYS[1], 1, 2, 'x')`, []string{"k"}, nil)
	assert.Error(t, err)
}
