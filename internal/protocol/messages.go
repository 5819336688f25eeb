package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type discriminators.
const (
	TypeStateUpdate  = "state_update"
	TypeStatePush    = "state_push"
	TypeVoteBatch    = "vote_batch"
	TypeVotesRequest = "votes_request"
	TypeHeartbeat    = "heartbeat"
	TypeHeartbeatAck = "heartbeat_ack"
	TypeError        = "error"
)

// Error codes carried by ErrorMessage and HTTP error envelopes.
const (
	CodeAuthFailed    = "AUTH_FAILED"
	CodeAuthRequired  = "AUTH_REQUIRED"
	CodeMissingAuth   = "MISSING_AUTH"
	CodeInvalidAuth   = "INVALID_AUTH"
	CodeNotSupported  = "NOT_SUPPORTED"
	CodeParseError    = "PARSE_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodeInvalidAction = "INVALID_ACTION"
	CodeAgentExists   = "AGENT_EXISTS"
	CodeInvalidRegSec = "INVALID_REGISTRATION_SECRET"
	CodeBanned        = "BANNED"
	CodeRateLimited   = "RATE_LIMITED"
	CodeSoftBanned    = "SOFT_BANNED"
	CodeStateMissing  = "STATE_UNAVAILABLE"
	CodeInternal      = "INTERNAL_ERROR"
)

// BroadcastChannel is the single pub/sub channel carrying state updates
// between relay replicas (and from a colocated back end in server mode).
const BroadcastChannel = "crowdplay:broadcast"

// ErrUnknownType is returned by Decode for an unrecognised discriminator.
// Receivers drop such messages with a warning rather than closing the socket.
var ErrUnknownType = errors.New("unknown message type")

// StateUpdate fans the latest game state out to agents (relay → agent). The
// relay also echoes it back to the home client, which ignores the loopback.
type StateUpdate struct {
	Type   string     `json:"type"`
	TickID int        `json:"tickId"`
	GameID string     `json:"gameId"`
	State  *GameState `json:"state"`
}

// StatePush carries a freshly decoded state from the home client to the relay.
type StatePush struct {
	Type   string     `json:"type"`
	TickID int        `json:"tickId"`
	GameID string     `json:"gameId"`
	State  *GameState `json:"state"`
}

// Vote is one agent's buffered vote.
type Vote struct {
	AgentID   string `json:"agentId"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// VoteBatch drains the relay's vote buffer to the home client.
type VoteBatch struct {
	Type   string `json:"type"`
	TickID int    `json:"tickId"`
	GameID string `json:"gameId"`
	Votes  []Vote `json:"votes"`
}

// VotesRequest asks the relay to flush buffered votes immediately.
type VotesRequest struct {
	Type   string `json:"type"`
	TickID int    `json:"tickId"`
	GameID string `json:"gameId"`
}

// Heartbeat is sent by the relay; the home client answers with HeartbeatAck.
type Heartbeat struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// HeartbeatAck keeps the home-connected flag alive.
type HeartbeatAck struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorMessage reports a protocol-level failure over a socket.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HomeAuth is the first frame on /home/connect. It carries no type tag.
type HomeAuth struct {
	Secret string `json:"secret"`
}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses a wire message and validates its required fields. The
// returned value is one of the concrete message structs above; callers switch
// on the type. Unknown discriminators return ErrUnknownType.
func Decode(data []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	switch env.Type {
	case TypeStateUpdate:
		var m StateUpdate
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		if err := validateStateMsg(m.TickID, m.GameID, m.State); err != nil {
			return nil, err
		}
		return m, nil

	case TypeStatePush:
		var m StatePush
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		if err := validateStateMsg(m.TickID, m.GameID, m.State); err != nil {
			return nil, err
		}
		return m, nil

	case TypeVoteBatch:
		var m VoteBatch
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		if m.GameID == "" {
			return nil, fmt.Errorf("vote_batch: missing gameId")
		}
		for i, v := range m.Votes {
			if v.AgentID == "" {
				return nil, fmt.Errorf("vote_batch: votes[%d] missing agentId", i)
			}
			if !ValidAction(v.Action) {
				return nil, fmt.Errorf("vote_batch: votes[%d] invalid action %q", i, v.Action)
			}
		}
		return m, nil

	case TypeVotesRequest:
		var m VotesRequest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		if m.GameID == "" {
			return nil, fmt.Errorf("votes_request: missing gameId")
		}
		return m, nil

	case TypeHeartbeat:
		var m Heartbeat
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return m, nil

	case TypeHeartbeatAck:
		var m HeartbeatAck
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return m, nil

	case TypeError:
		var m ErrorMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func validateStateMsg(tick int, gameID string, state *GameState) error {
	if gameID == "" {
		return fmt.Errorf("missing gameId")
	}
	if tick < 0 {
		return fmt.Errorf("negative tickId %d", tick)
	}
	if err := ValidateState(state); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}
	return nil
}

// Encode marshals a message, filling in its type tag.
func Encode(msg interface{}) ([]byte, error) {
	switch m := msg.(type) {
	case StateUpdate:
		m.Type = TypeStateUpdate
		return json.Marshal(m)
	case *StateUpdate:
		m.Type = TypeStateUpdate
		return json.Marshal(m)
	case StatePush:
		m.Type = TypeStatePush
		return json.Marshal(m)
	case *StatePush:
		m.Type = TypeStatePush
		return json.Marshal(m)
	case VoteBatch:
		m.Type = TypeVoteBatch
		return json.Marshal(m)
	case *VoteBatch:
		m.Type = TypeVoteBatch
		return json.Marshal(m)
	case VotesRequest:
		m.Type = TypeVotesRequest
		return json.Marshal(m)
	case *VotesRequest:
		m.Type = TypeVotesRequest
		return json.Marshal(m)
	case Heartbeat:
		m.Type = TypeHeartbeat
		return json.Marshal(m)
	case *Heartbeat:
		m.Type = TypeHeartbeat
		return json.Marshal(m)
	case HeartbeatAck:
		m.Type = TypeHeartbeatAck
		return json.Marshal(m)
	case *HeartbeatAck:
		m.Type = TypeHeartbeatAck
		return json.Marshal(m)
	case ErrorMessage:
		m.Type = TypeError
		return json.Marshal(m)
	case *ErrorMessage:
		m.Type = TypeError
		return json.Marshal(m)
	default:
		return nil, fmt.Errorf("unencodable message %T", msg)
	}
}
