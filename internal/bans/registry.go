// Package bans implements the ban registry: agent, IP, CIDR and user-agent
// bans, hard and soft, with a short in-process decision cache and automatic
// escalation from sliding-window violation counters.
package bans

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cgp/crowdplay/internal/kv"
)

// Target kinds.
type Kind string

const (
	KindAgent Kind = "agent"
	KindIP    Kind = "ip"
	KindCIDR  Kind = "cidr"
	KindUA    Kind = "userAgentRegex"
)

// Ban modes. Hard means HTTP 403 at ingress; soft means forced 429 until
// expiry.
type Mode string

const (
	ModeHard Mode = "hard"
	ModeSoft Mode = "soft"
)

// Violation kinds tracked for auto-escalation.
type ViolationKind string

const (
	ViolationRateLimit      ViolationKind = "rate_limit"
	ViolationInvalidRequest ViolationKind = "invalid_request"
)

// Record is one stored ban.
type Record struct {
	ID        string `json:"id"`
	Target    string `json:"target"`
	Kind      Kind   `json:"kind"`
	Mode      Mode   `json:"mode"`
	Reason    string `json:"reason"`
	ExpiresAt int64  `json:"expiresAt,omitempty"` // unix ms, 0 = permanent
	CreatedAt int64  `json:"createdAt"`
}

// Decision is the outcome of a ban check.
type Decision struct {
	Banned    bool
	Mode      Mode
	Reason    string
	ExpiresAt int64
}

type cacheEntry struct {
	decision Decision
	storedAt time.Time
}

// Options tune escalation thresholds.
type Options struct {
	CacheTTL           time.Duration // decision cache, default 60s
	ViolationWindow    time.Duration // sliding window, default 5m
	RateLimitThreshold int           // agent soft-ban threshold, default 10
	InvalidThreshold   int           // IP hard-ban threshold, default 20
	AutoBanDuration    time.Duration // default 1h
}

func (o *Options) defaults() {
	if o.CacheTTL == 0 {
		o.CacheTTL = 60 * time.Second
	}
	if o.ViolationWindow == 0 {
		o.ViolationWindow = 5 * time.Minute
	}
	if o.RateLimitThreshold == 0 {
		o.RateLimitThreshold = 10
	}
	if o.InvalidThreshold == 0 {
		o.InvalidThreshold = 20
	}
	if o.AutoBanDuration == 0 {
		o.AutoBanDuration = time.Hour
	}
}

// violationScript appends one violation, trims the window, and returns the
// current count. KEYS[1] is the window zset; ARGV = nowMs, member, cutoffMs,
// ttlMs.
const violationScript = `
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return redis.call('ZCARD', KEYS[1])
`

// Registry stores bans in the shared KV store and caches decisions
// in-process for CacheTTL. The cache is cleared on every mutation, so stale
// "allowed" decisions last at most one TTL.
type Registry struct {
	kv     kv.Store
	prefix string
	opts   Options

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry

	now func() time.Time
}

// New creates a ban registry.
func New(store kv.Store, opts Options) *Registry {
	opts.defaults()
	return &Registry{
		kv:     store,
		prefix: "crowdplay:bans:",
		opts:   opts,
		cache:  make(map[string]cacheEntry),
		now:    time.Now,
	}
}

// SetClock overrides the registry clock. Test hook.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func (r *Registry) hashKey(kind Kind) string {
	switch kind {
	case KindAgent:
		return r.prefix + "agent"
	case KindIP:
		return r.prefix + "ip"
	case KindCIDR:
		return r.prefix + "cidr"
	default:
		return r.prefix + "ua"
	}
}

// Ban stores a ban record and invalidates the decision cache.
func (r *Registry) Ban(ctx context.Context, target string, kind Kind, mode Mode, reason string, duration time.Duration) (Record, error) {
	if err := validateTarget(target, kind); err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:        uuid.New().String(),
		Target:    target,
		Kind:      kind,
		Mode:      mode,
		Reason:    reason,
		CreatedAt: r.now().UnixMilli(),
	}
	if duration > 0 {
		rec.ExpiresAt = r.now().Add(duration).UnixMilli()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal ban: %w", err)
	}
	if err := r.kv.HSet(ctx, r.hashKey(kind), map[string]string{target: string(data)}); err != nil {
		return Record{}, fmt.Errorf("store ban: %w", err)
	}
	r.invalidate()
	slog.Info("[Bans] Ban added", "target", target, "kind", kind, "mode", mode, "reason", reason)
	return rec, nil
}

// Unban removes a ban record and invalidates the decision cache.
func (r *Registry) Unban(ctx context.Context, target string, kind Kind) error {
	if err := r.kv.HDel(ctx, r.hashKey(kind), target); err != nil {
		return fmt.Errorf("remove ban: %w", err)
	}
	r.invalidate()
	slog.Info("[Bans] Ban removed", "target", target, "kind", kind)
	return nil
}

// List returns all active (unexpired) bans.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	var out []Record
	nowMs := r.now().UnixMilli()
	for _, kind := range []Kind{KindAgent, KindIP, KindCIDR, KindUA} {
		fields, err := r.kv.HGetAll(ctx, r.hashKey(kind))
		if err != nil {
			return nil, fmt.Errorf("list %s bans: %w", kind, err)
		}
		for _, raw := range fields {
			var rec Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				continue
			}
			if rec.ExpiresAt != 0 && rec.ExpiresAt <= nowMs {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Check consults agent, IP, CIDR then user-agent bans. A hard ban always
// masks a soft one. Decisions are cached for Options.CacheTTL keyed by the
// full (agent, ip, ua) triple.
func (r *Registry) Check(ctx context.Context, agentID, ip, userAgent string) (Decision, error) {
	cacheKey := agentID + "\x00" + ip + "\x00" + userAgent

	r.cacheMu.RLock()
	if entry, ok := r.cache[cacheKey]; ok && r.now().Sub(entry.storedAt) < r.opts.CacheTTL {
		r.cacheMu.RUnlock()
		return entry.decision, nil
	}
	r.cacheMu.RUnlock()

	decision, err := r.check(ctx, agentID, ip, userAgent)
	if err != nil {
		return Decision{}, err
	}

	r.cacheMu.Lock()
	r.cache[cacheKey] = cacheEntry{decision: decision, storedAt: r.now()}
	r.cacheMu.Unlock()
	return decision, nil
}

func (r *Registry) check(ctx context.Context, agentID, ip, userAgent string) (Decision, error) {
	var soft *Decision
	consider := func(rec *Record) *Decision {
		d := &Decision{Banned: true, Mode: rec.Mode, Reason: rec.Reason, ExpiresAt: rec.ExpiresAt}
		if rec.Mode == ModeHard {
			return d
		}
		if soft == nil {
			soft = d
		}
		return nil
	}

	if agentID != "" {
		rec, err := r.lookup(ctx, KindAgent, agentID)
		if err != nil {
			return Decision{}, err
		}
		if rec != nil {
			if d := consider(rec); d != nil {
				return *d, nil
			}
		}
	}

	if ip != "" {
		rec, err := r.lookup(ctx, KindIP, ip)
		if err != nil {
			return Decision{}, err
		}
		if rec != nil {
			if d := consider(rec); d != nil {
				return *d, nil
			}
		}

		// CIDR bans: linear scan over a modest set.
		if addr, err := netip.ParseAddr(ip); err == nil {
			fields, err := r.kv.HGetAll(ctx, r.hashKey(KindCIDR))
			if err != nil {
				return Decision{}, fmt.Errorf("fetch cidr bans: %w", err)
			}
			for cidr, raw := range fields {
				prefix, perr := netip.ParsePrefix(cidr)
				if perr != nil || !prefix.Contains(addr) {
					continue
				}
				rec := r.parseActive(raw)
				if rec == nil {
					continue
				}
				if d := consider(rec); d != nil {
					return *d, nil
				}
			}
		}
	}

	if userAgent != "" {
		fields, err := r.kv.HGetAll(ctx, r.hashKey(KindUA))
		if err != nil {
			return Decision{}, fmt.Errorf("fetch ua bans: %w", err)
		}
		for pattern, raw := range fields {
			re, rerr := regexp.Compile(pattern)
			if rerr != nil || !re.MatchString(userAgent) {
				continue
			}
			rec := r.parseActive(raw)
			if rec == nil {
				continue
			}
			if d := consider(rec); d != nil {
				return *d, nil
			}
		}
	}

	if soft != nil {
		return *soft, nil
	}
	return Decision{}, nil
}

func (r *Registry) lookup(ctx context.Context, kind Kind, target string) (*Record, error) {
	raw, err := r.kv.HGet(ctx, r.hashKey(kind), target)
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s ban: %w", kind, err)
	}
	return r.parseActive(raw), nil
}

// parseActive unmarshals a record, returning nil for corrupt or expired ones.
func (r *Registry) parseActive(raw string) *Record {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil
	}
	if rec.ExpiresAt != 0 && rec.ExpiresAt <= r.now().UnixMilli() {
		return nil
	}
	return &rec
}

// RecordViolation bumps the sliding-window counter for key and, past the
// threshold, creates a ban automatically: agent soft bans for rate-limit
// violations, IP hard bans for invalid requests.
func (r *Registry) RecordViolation(ctx context.Context, key string, kind ViolationKind) error {
	nowMs := r.now().UnixMilli()
	windowMs := r.opts.ViolationWindow.Milliseconds()
	zkey := fmt.Sprintf("%sviol:%s:%s", r.prefix, kind, key)

	raw, err := r.kv.Eval(ctx, violationScript,
		[]string{zkey},
		[]interface{}{nowMs, uuid.New().String(), nowMs - windowMs, windowMs})
	if err != nil {
		return fmt.Errorf("violation script: %w", err)
	}
	count, _ := raw.(int64)

	var threshold int
	banKind, banMode := KindAgent, ModeSoft
	reason := "automatic: repeated rate-limit violations"
	if kind == ViolationInvalidRequest {
		threshold = r.opts.InvalidThreshold
		banKind, banMode = KindIP, ModeHard
		reason = "automatic: repeated invalid requests"
	} else {
		threshold = r.opts.RateLimitThreshold
	}

	if int(count) >= threshold {
		if _, err := r.Ban(ctx, key, banKind, banMode, reason, r.opts.AutoBanDuration); err != nil {
			return err
		}
		slog.Warn("[Bans] Auto-escalation triggered", "target", key, "kind", kind, "count", count)
	}
	return nil
}

func (r *Registry) invalidate() {
	r.cacheMu.Lock()
	r.cache = make(map[string]cacheEntry)
	r.cacheMu.Unlock()
}

func validateTarget(target string, kind Kind) error {
	switch kind {
	case KindAgent:
		if target == "" {
			return fmt.Errorf("empty agent target")
		}
	case KindIP:
		if _, err := netip.ParseAddr(target); err != nil {
			return fmt.Errorf("invalid ip target %q: %w", target, err)
		}
	case KindCIDR:
		if _, err := netip.ParsePrefix(target); err != nil {
			return fmt.Errorf("invalid cidr target %q: %w", target, err)
		}
	case KindUA:
		if _, err := regexp.Compile(target); err != nil {
			return fmt.Errorf("invalid user-agent pattern %q: %w", target, err)
		}
	default:
		return fmt.Errorf("unknown ban kind %q", kind)
	}
	return nil
}
