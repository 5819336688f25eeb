package votes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgp/crowdplay/internal/kv"
	"github.com/cgp/crowdplay/internal/protocol"
)

func TestBufferPutAndDrain(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(kv.NewMemory())

	require.NoError(t, b.Put(ctx, "g", "alice", "up", 100))
	require.NoError(t, b.Put(ctx, "g", "bob", "down", 200))

	n, err := b.Size(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	votes, err := b.Drain(ctx, "g")
	require.NoError(t, err)
	require.Len(t, votes, 2)

	byAgent := map[string]protocol.Vote{}
	for _, v := range votes {
		byAgent[v.AgentID] = v
	}
	assert.Equal(t, protocol.Vote{AgentID: "alice", Action: "up", Timestamp: 100}, byAgent["alice"])
	assert.Equal(t, protocol.Vote{AgentID: "bob", Action: "down", Timestamp: 200}, byAgent["bob"])

	// Drain empties the buffer.
	n, err = b.Size(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	votes, err = b.Drain(ctx, "g")
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestBufferLastWriteWinsPerAgent(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(kv.NewMemory())

	require.NoError(t, b.Put(ctx, "g", "alice", "up", 100))
	require.NoError(t, b.Put(ctx, "g", "alice", "b", 300))

	votes, err := b.Drain(ctx, "g")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "b", votes[0].Action)
	assert.Equal(t, int64(300), votes[0].Timestamp)
}

func TestBufferScopedByGame(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(kv.NewMemory())

	require.NoError(t, b.Put(ctx, "g1", "alice", "up", 100))
	require.NoError(t, b.Put(ctx, "g2", "alice", "down", 200))

	votes, err := b.Drain(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "up", votes[0].Action)

	n, err := b.Size(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBufferExpiresWhenUndrained(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	b := NewBuffer(store)
	base := time.UnixMilli(1_000_000_000)
	store.SetClock(func() time.Time { return base })

	require.NoError(t, b.Put(ctx, "g", "alice", "up", 100))

	// A fresh vote refreshes the TTL.
	store.SetClock(func() time.Time { return base.Add(45 * time.Minute) })
	require.NoError(t, b.Put(ctx, "g", "bob", "down", 200))

	store.SetClock(func() time.Time { return base.Add(90 * time.Minute) })
	n, err := b.Size(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Nothing drained for over an hour: the hash is gone.
	store.SetClock(func() time.Time { return base.Add(3 * time.Hour) })
	n, err = b.Size(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSplitBuffered(t *testing.T) {
	action, ts, ok := splitBuffered("up|123")
	require.True(t, ok)
	assert.Equal(t, "up", action)
	assert.Equal(t, int64(123), ts)

	_, _, ok = splitBuffered("no-separator")
	assert.False(t, ok)
	_, _, ok = splitBuffered("up|not-a-number")
	assert.False(t, ok)
}
