// Package auth implements the agent credential store. Tokens are shown once
// at registration and persisted only as SHA-256 digests; the digest is the
// lookup key, so no token material ever touches the KV store.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/cgp/crowdplay/internal/kv"
)

// TokenPrefix identifies agent API keys on the wire.
const TokenPrefix = "cgp_"

// Plans and their token-bucket parameters.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// Limits are the per-plan rate-limit parameters.
type Limits struct {
	RPS   int
	Burst int
}

var planLimits = map[Plan]Limits{
	PlanFree:     {RPS: 5, Burst: 8},
	PlanStandard: {RPS: 20, Burst: 30},
	PlanPremium:  {RPS: 100, Burst: 150},
}

// PlanLimits returns the rate parameters for a plan, defaulting to free for
// anything unrecognised.
func PlanLimits(p Plan) Limits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Credential is the stored metadata for one agent.
type Credential struct {
	AgentID   string
	Plan      Plan
	RPSLimit  int
	CreatedAt int64 // unix ms
}

// Errors surfaced to the HTTP layer.
var (
	ErrAgentExists    = errors.New("auth: agent id already registered")
	ErrInvalidAgentID = errors.New("auth: invalid agent id")
	ErrInvalidToken   = errors.New("auth: invalid token")
)

var agentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// Store persists credentials in the shared KV store. Key layout:
//
//	cred:{digest}      hash {agentId, plan, rpsLimit, createdAt}
//	agent:{agentId}    string digest (reservation, written with SETNX)
type Store struct {
	kv     kv.Store
	prefix string
	now    func() time.Time
}

// NewStore creates a credential store on the given KV backend.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store, prefix: "crowdplay:", now: time.Now}
}

// SetClock overrides the creation-time clock. Test hook.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) credKey(digest string) string { return s.prefix + "cred:" + digest }
func (s *Store) agentKey(id string) string    { return s.prefix + "agent:" + id }

// HashToken returns the hex SHA-256 digest of a presented token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(raw[:]), nil
}

// ValidAgentID reports whether id satisfies the 3–64 char [A-Za-z0-9_-] rule.
func ValidAgentID(id string) bool {
	return agentIDPattern.MatchString(id)
}

// Register reserves agentID and mints a fresh token. The token is returned
// exactly once; only its digest persists. Concurrent registrations of the
// same id race on SETNX, so exactly one wins.
func (s *Store) Register(ctx context.Context, agentID string) (string, Credential, error) {
	if !ValidAgentID(agentID) {
		return "", Credential{}, ErrInvalidAgentID
	}

	token, err := generateToken()
	if err != nil {
		return "", Credential{}, err
	}
	digest := HashToken(token)

	ok, err := s.kv.SetNX(ctx, s.agentKey(agentID), digest, 0)
	if err != nil {
		return "", Credential{}, fmt.Errorf("reserve agent id: %w", err)
	}
	if !ok {
		return "", Credential{}, ErrAgentExists
	}

	cred := Credential{
		AgentID:   agentID,
		Plan:      PlanFree,
		RPSLimit:  PlanLimits(PlanFree).RPS,
		CreatedAt: s.now().UnixMilli(),
	}
	fields := map[string]string{
		"agentId":   cred.AgentID,
		"plan":      string(cred.Plan),
		"rpsLimit":  strconv.Itoa(cred.RPSLimit),
		"createdAt": strconv.FormatInt(cred.CreatedAt, 10),
	}
	if err := s.kv.HSet(ctx, s.credKey(digest), fields); err != nil {
		// Roll the reservation back so the id isn't burned by a partial write.
		_ = s.kv.Del(ctx, s.agentKey(agentID))
		return "", Credential{}, fmt.Errorf("store credential: %w", err)
	}

	return token, cred, nil
}

// Lookup resolves a presented token to its credential. The token is hashed
// and the digest record fetched by key; a malformed token short-circuits
// without touching the store.
func (s *Store) Lookup(ctx context.Context, token string) (Credential, error) {
	if len(token) != len(TokenPrefix)+64 || token[:len(TokenPrefix)] != TokenPrefix {
		return Credential{}, ErrInvalidToken
	}
	if _, err := hex.DecodeString(token[len(TokenPrefix):]); err != nil {
		return Credential{}, ErrInvalidToken
	}

	fields, err := s.kv.HGetAll(ctx, s.credKey(HashToken(token)))
	if err != nil {
		return Credential{}, fmt.Errorf("fetch credential: %w", err)
	}
	if len(fields) == 0 {
		return Credential{}, ErrInvalidToken
	}

	rps, _ := strconv.Atoi(fields["rpsLimit"])
	createdAt, _ := strconv.ParseInt(fields["createdAt"], 10, 64)
	return Credential{
		AgentID:   fields["agentId"],
		Plan:      Plan(fields["plan"]),
		RPSLimit:  rps,
		CreatedAt: createdAt,
	}, nil
}

// Revoke deletes a credential by digest, freeing both the digest record and
// the agent-id reservation.
func (s *Store) Revoke(ctx context.Context, digest string) error {
	fields, err := s.kv.HGetAll(ctx, s.credKey(digest))
	if err != nil {
		return fmt.Errorf("fetch credential: %w", err)
	}
	keys := []string{s.credKey(digest)}
	if agentID := fields["agentId"]; agentID != "" {
		keys = append(keys, s.agentKey(agentID))
	}
	return s.kv.Del(ctx, keys...)
}
