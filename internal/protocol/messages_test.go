package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validState(turn int) *GameState {
	return &GameState{
		Turn:             turn,
		Phase:            PhaseOverworld,
		AvailableActions: AvailableActions(),
		Overworld:        &Overworld{MapID: 1},
	}
}

func TestValidAction(t *testing.T) {
	for _, a := range []string{"up", "down", "left", "right", "a", "b", "start", "select"} {
		assert.True(t, ValidAction(a), a)
	}
	// Legacy battle-only tokens are out of the vocabulary.
	for _, a := range []string{"move:1", "switch:2", "run", "A", "UP", "", "x"} {
		assert.False(t, ValidAction(a), a)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	messages := []interface{}{
		StateUpdate{TickID: 4, GameID: "g", State: validState(4)},
		StatePush{TickID: 5, GameID: "g", State: validState(5)},
		VoteBatch{TickID: 4, GameID: "g", Votes: []Vote{{AgentID: "bob", Action: "up", Timestamp: 99}}},
		VotesRequest{TickID: 4, GameID: "g"},
		Heartbeat{Timestamp: 1234},
		HeartbeatAck{Timestamp: 1234},
		ErrorMessage{Code: CodeRateLimited, Message: "slow down"},
	}

	for _, msg := range messages {
		data, err := Encode(msg)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err, "%T", msg)
		assert.IsType(t, msg, decoded)
	}
}

func TestDecodeUnknownTypeRejected(t *testing.T) {
	_, err := Decode([]byte(`{"type":"mystery","payload":1}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`{"payload":1}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDecodeStatePushValidation(t *testing.T) {
	// Missing gameId.
	bad := StatePush{TickID: 1, State: validState(1)}
	data, err := Encode(bad)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.Error(t, err)

	// Battle phase without a battle block.
	s := validState(1)
	s.Phase = PhaseBattle
	data, err = Encode(StatePush{TickID: 1, GameID: "g", State: s})
	require.NoError(t, err)
	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecodeVoteBatchValidation(t *testing.T) {
	_, err := Decode([]byte(`{"type":"vote_batch","tickId":1,"gameId":"g","votes":[{"agentId":"bob","action":"run","timestamp":1}]}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"vote_batch","tickId":1,"gameId":"g","votes":[{"agentId":"","action":"up","timestamp":1}]}`))
	assert.Error(t, err)
}

func TestValidateState(t *testing.T) {
	assert.Error(t, ValidateState(nil))

	s := validState(0)
	require.NoError(t, ValidateState(s))

	s.Turn = -1
	assert.Error(t, ValidateState(s))

	s = validState(0)
	s.Phase = "lobby"
	assert.Error(t, ValidateState(s))

	s = validState(0)
	s.AvailableActions = []string{"a"}
	assert.Error(t, ValidateState(s))

	s = validState(0)
	s.Party = []Pokemon{{
		Level: 50, HP: 10, MaxHP: 20, Types: []string{"Grass"},
	}}
	require.NoError(t, ValidateState(s))
	s.Party[0].HP = 25
	assert.Error(t, ValidateState(s))
	s.Party[0].HP = 10
	s.Party[0].Level = 101
	assert.Error(t, ValidateState(s))

	s = validState(0)
	s.Battle = &Battle{
		Active:   Pokemon{Level: 10, HP: 5, MaxHP: 10, Types: []string{"Fire"}},
		Opponent: Pokemon{Level: 10, HP: 5, MaxHP: 10, Types: []string{"Water"}},
	}
	// battle present but phase is overworld
	assert.Error(t, ValidateState(s))
	s.Phase = PhaseBattle
	s.Overworld = nil
	require.NoError(t, ValidateState(s))
	s.Battle.Modifiers.Attack = 7
	assert.Error(t, ValidateState(s))
}
