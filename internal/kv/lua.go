package kv

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Eval runs a Lua script against the in-memory store under the store lock,
// giving the same all-or-nothing semantics as Redis EVAL. Only the command
// subset used by this codebase's scripts is implemented; unknown commands
// raise a Lua error.
func (m *Memory) Eval(ctx context.Context, script string, keys []string, args []interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L := lua.NewState()
	defer L.Close()

	keysTbl := L.NewTable()
	for i, k := range keys {
		L.RawSetInt(keysTbl, i+1, lua.LString(k))
	}
	L.SetGlobal("KEYS", keysTbl)

	argvTbl := L.NewTable()
	for i, a := range args {
		L.RawSetInt(argvTbl, i+1, lua.LString(fmt.Sprint(a)))
	}
	L.SetGlobal("ARGV", argvTbl)

	redisTbl := L.NewTable()
	L.SetField(redisTbl, "call", L.NewFunction(m.luaCall))
	L.SetGlobal("redis", redisTbl)

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("eval script: %w", err)
	}

	ret := L.Get(-1)
	return luaToGo(ret), nil
}

// luaCall implements redis.call for the memory backend. The store lock is
// already held by Eval.
func (m *Memory) luaCall(L *lua.LState) int {
	n := L.GetTop()
	if n < 2 {
		L.RaiseError("redis.call needs a command and a key")
		return 0
	}
	cmd := strings.ToUpper(L.CheckString(1))
	argv := make([]string, 0, n-1)
	for i := 2; i <= n; i++ {
		argv = append(argv, lua.LVAsString(L.Get(i)))
	}
	key := argv[0]
	m.reap(key)

	push := func(v lua.LValue) int {
		L.Push(v)
		return 1
	}

	switch cmd {
	case "GET":
		if v, ok := m.strs[key]; ok {
			return push(lua.LString(v))
		}
		return push(lua.LFalse)

	case "SET":
		m.setLocked(key, argv[1], 0)
		return push(lua.LString("OK"))

	case "DEL":
		removed := 0
		for _, k := range argv {
			if m.existsLocked(k) {
				removed++
			}
			m.dropLocked(k)
		}
		return push(lua.LNumber(removed))

	case "EXPIRE", "PEXPIRE":
		secs, err := strconv.ParseFloat(argv[1], 64)
		if err != nil {
			L.RaiseError("bad %s argument %q", cmd, argv[1])
			return 0
		}
		d := time.Duration(secs * float64(time.Second))
		if cmd == "PEXPIRE" {
			d = time.Duration(secs * float64(time.Millisecond))
		}
		if !m.existsLocked(key) {
			return push(lua.LNumber(0))
		}
		m.expiries[key] = m.now().Add(d)
		return push(lua.LNumber(1))

	case "HGET":
		if v, ok := m.hashes[key][argv[1]]; ok {
			return push(lua.LString(v))
		}
		return push(lua.LFalse)

	case "HSET":
		h := m.hashes[key]
		if h == nil {
			h = make(map[string]string)
			m.hashes[key] = h
		}
		added := 0
		for i := 1; i+1 < len(argv); i += 2 {
			if _, ok := h[argv[i]]; !ok {
				added++
			}
			h[argv[i]] = argv[i+1]
		}
		return push(lua.LNumber(added))

	case "HDEL":
		h := m.hashes[key]
		removed := 0
		for _, f := range argv[1:] {
			if _, ok := h[f]; ok {
				removed++
				delete(h, f)
			}
		}
		if len(h) == 0 {
			delete(m.hashes, key)
		}
		return push(lua.LNumber(removed))

	case "HGETALL":
		tbl := L.NewTable()
		fields := make([]string, 0, len(m.hashes[key]))
		for f := range m.hashes[key] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		i := 1
		for _, f := range fields {
			L.RawSetInt(tbl, i, lua.LString(f))
			L.RawSetInt(tbl, i+1, lua.LString(m.hashes[key][f]))
			i += 2
		}
		return push(tbl)

	case "HLEN":
		return push(lua.LNumber(len(m.hashes[key])))

	case "ZADD":
		zs := m.zsets[key]
		if zs == nil {
			zs = make(map[string]float64)
			m.zsets[key] = zs
		}
		added := 0
		for i := 1; i+1 < len(argv); i += 2 {
			score, err := strconv.ParseFloat(argv[i], 64)
			if err != nil {
				L.RaiseError("bad ZADD score %q", argv[i])
				return 0
			}
			if _, ok := zs[argv[i+1]]; !ok {
				added++
			}
			zs[argv[i+1]] = score
		}
		return push(lua.LNumber(added))

	case "ZINCRBY":
		incr, err := strconv.ParseFloat(argv[1], 64)
		if err != nil {
			L.RaiseError("bad ZINCRBY increment %q", argv[1])
			return 0
		}
		zs := m.zsets[key]
		if zs == nil {
			zs = make(map[string]float64)
			m.zsets[key] = zs
		}
		zs[argv[2]] += incr
		return push(lua.LString(strconv.FormatFloat(zs[argv[2]], 'f', -1, 64)))

	case "ZREM":
		zs := m.zsets[key]
		removed := 0
		for _, member := range argv[1:] {
			if _, ok := zs[member]; ok {
				removed++
				delete(zs, member)
			}
		}
		if len(zs) == 0 {
			delete(m.zsets, key)
		}
		return push(lua.LNumber(removed))

	case "ZSCORE":
		if score, ok := m.zsets[key][argv[1]]; ok {
			return push(lua.LString(strconv.FormatFloat(score, 'f', -1, 64)))
		}
		return push(lua.LFalse)

	case "ZCARD":
		return push(lua.LNumber(len(m.zsets[key])))

	case "ZREMRANGEBYSCORE":
		min := parseScoreArg(argv[1])
		max := parseScoreArg(argv[2])
		zs := m.zsets[key]
		removed := 0
		for member, score := range zs {
			if score >= min && score <= max {
				removed++
				delete(zs, member)
			}
		}
		if len(zs) == 0 {
			delete(m.zsets, key)
		}
		return push(lua.LNumber(removed))

	default:
		L.RaiseError("unsupported command %s", cmd)
		return 0
	}
}

func parseScoreArg(s string) float64 {
	switch s {
	case "-inf":
		return math.Inf(-1)
	case "+inf", "inf":
		return math.Inf(1)
	default:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
}

// luaToGo converts a script result following Redis reply conventions:
// numbers truncate to int64, false becomes nil, tables become slices.
func luaToGo(v lua.LValue) interface{} {
	switch lv := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		if bool(lv) {
			return int64(1)
		}
		return nil
	case lua.LNumber:
		return int64(lv)
	case lua.LString:
		return string(lv)
	case *lua.LTable:
		var out []interface{}
		lv.ForEach(func(k, val lua.LValue) {
			if _, ok := k.(lua.LNumber); ok {
				out = append(out, luaToGo(val))
			}
		})
		return out
	default:
		return nil
	}
}
