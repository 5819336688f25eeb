package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and single-process deployments.
// Scripted operations run through a real Lua interpreter (see lua.go) so the
// atomic scripts behave exactly as they do on Redis.
type Memory struct {
	mu       sync.Mutex
	strs     map[string]string
	hashes   map[string]map[string]string
	zsets    map[string]map[string]float64
	expiries map[string]time.Time
	subs     map[string][]*memSub
	subSeq   int
	now      func() time.Time
}

type memSub struct {
	id      int
	handler func([]byte)
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		strs:     make(map[string]string),
		hashes:   make(map[string]map[string]string),
		zsets:    make(map[string]map[string]float64),
		expiries: make(map[string]time.Time),
		subs:     make(map[string][]*memSub),
		now:      time.Now,
	}
}

// SetClock overrides the TTL clock. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Close() error { return nil }

// reap removes the key everywhere if its TTL has passed. Callers hold mu.
func (m *Memory) reap(key string) {
	if exp, ok := m.expiries[key]; ok && m.now().After(exp) {
		m.dropLocked(key)
	}
}

func (m *Memory) dropLocked(key string) {
	delete(m.strs, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	delete(m.expiries, key)
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	v, ok := m.strs[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, ttl)
	return nil
}

func (m *Memory) setLocked(key, value string, ttl time.Duration) {
	m.strs[key] = value
	if ttl > 0 {
		m.expiries[key] = m.now().Add(ttl)
	} else {
		delete(m.expiries, key)
	}
}

func (m *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	if _, ok := m.strs[key]; ok {
		return false, nil
	}
	m.setLocked(key, value, ttl)
	return true, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.dropLocked(k)
	}
	return nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	if m.existsLocked(key) {
		m.expiries[key] = m.now().Add(ttl)
	}
	return nil
}

func (m *Memory) existsLocked(key string) bool {
	if _, ok := m.strs[key]; ok {
		return true
	}
	if _, ok := m.hashes[key]; ok {
		return true
	}
	if _, ok := m.zsets[key]; ok {
		return true
	}
	return false
}

func (m *Memory) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (m *Memory) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	if _, ok := h[field]; ok {
		return false, nil
	}
	h[field] = value
	return true, nil
}

func (m *Memory) HGet(ctx context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	v, ok := m.hashes[key][field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) HDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	h := m.hashes[key]
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(m.hashes, key)
	}
	return nil
}

func (m *Memory) HLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	return int64(len(m.hashes[key])), nil
}

func (m *Memory) ZAdd(ctx context.Context, key string, members ...Z) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	zs := m.zsets[key]
	if zs == nil {
		zs = make(map[string]float64)
		m.zsets[key] = zs
	}
	for _, z := range members {
		zs[z.Member] = z.Score
	}
	return nil
}

func (m *Memory) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	zs := m.zsets[key]
	if zs == nil {
		zs = make(map[string]float64)
		m.zsets[key] = zs
	}
	zs[member] += incr
	return zs[member], nil
}

// sortedMembers returns members ordered by descending score; equal scores
// order lexically ascending, matching Redis ZREVRANGE semantics closely
// enough for tallies (tie-breaks use the tallyFirst hash, not set order).
func (m *Memory) sortedMembers(key string) []Z {
	zs := m.zsets[key]
	out := make([]Z, 0, len(zs))
	for member, score := range zs {
		out = append(out, Z{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.Compare(out[i].Member, out[j].Member) < 0
	})
	return out
}

func (m *Memory) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Z, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	all := m.sortedMembers(key)
	n := int64(len(all))
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = n + start
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	return all[start : stop+1], nil
}

func (m *Memory) ZRevRank(ctx context.Context, key, member string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	for i, z := range m.sortedMembers(key) {
		if z.Member == member {
			return int64(i), nil
		}
	}
	return 0, ErrNotFound
}

func (m *Memory) ZScore(ctx context.Context, key, member string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	score, ok := m.zsets[key][member]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

func (m *Memory) ZCard(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	return int64(len(m.zsets[key])), nil
}

func (m *Memory) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reap(key)
	zs := m.zsets[key]
	for member, score := range zs {
		if score >= min && score <= max {
			delete(zs, member)
		}
	}
	if len(zs) == 0 {
		delete(m.zsets, key)
	}
	return nil
}

func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	subs := make([]*memSub, len(m.subs[channel]))
	copy(subs, m.subs[channel])
	m.mu.Unlock()

	// Synchronous delivery keeps tests deterministic; handlers must not
	// re-enter Publish on the same goroutine with ordering assumptions.
	data := make([]byte, len(payload))
	copy(data, payload)
	for _, s := range subs {
		s.handler(data)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string, handler func([]byte)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subSeq++
	sub := &memSub{id: m.subSeq, handler: handler}
	m.subs[channel] = append(m.subs[channel], sub)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.subs[channel]
		for i, s := range list {
			if s.id == sub.id {
				m.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}, nil
}
