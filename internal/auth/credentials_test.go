package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgp/crowdplay/internal/kv"
)

func TestRegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	token, cred, err := s.Register(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, token, len(TokenPrefix)+64)
	assert.Equal(t, "bob", cred.AgentID)
	assert.Equal(t, PlanFree, cred.Plan)
	assert.Equal(t, 5, cred.RPSLimit)
	assert.NotZero(t, cred.CreatedAt)

	got, err := s.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, cred, got)
}

func TestRegisterDuplicateAgentID(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	_, _, err := s.Register(ctx, "bob")
	require.NoError(t, err)

	_, _, err = s.Register(ctx, "bob")
	assert.ErrorIs(t, err, ErrAgentExists)
}

func TestRegisterRejectsInvalidAgentIDs(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	for _, id := range []string{"", "ab", "has space", "emoji😀", strings.Repeat("x", 65)} {
		_, _, err := s.Register(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidAgentID, "id %q", id)
	}
	for _, id := range []string{"bob", "Bob_42", "agent-007", strings.Repeat("x", 64)} {
		_, _, err := s.Register(ctx, id)
		assert.NoError(t, err, "id %q", id)
	}
}

func TestLookupRejectsMalformedTokens(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	for _, token := range []string{
		"",
		"cgp_short",
		"wrong_" + strings.Repeat("a", 64),
		TokenPrefix + strings.Repeat("z", 64), // not hex
	} {
		_, err := s.Lookup(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	_, err := s.Lookup(ctx, TokenPrefix+strings.Repeat("ab", 32))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeFreesAgentID(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemory())

	token, _, err := s.Register(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, HashToken(token)))

	_, err = s.Lookup(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The reservation is released with the credential.
	_, _, err = s.Register(ctx, "bob")
	assert.NoError(t, err)
}

func TestPlanLimits(t *testing.T) {
	assert.Equal(t, Limits{RPS: 5, Burst: 8}, PlanLimits(PlanFree))
	assert.Equal(t, Limits{RPS: 20, Burst: 30}, PlanLimits(PlanStandard))
	assert.Equal(t, Limits{RPS: 100, Burst: 150}, PlanLimits(PlanPremium))
	assert.Equal(t, Limits{RPS: 5, Burst: 8}, PlanLimits(Plan("bogus")))
}
