// Package protocol defines the wire messages exchanged between agents, the
// relay and the home client, plus the game-state document broadcast to
// agents. Messages are tagged unions discriminated by a "type" string, the
// same shape on both sides of the relay.
package protocol

// The eight controller buttons agents may vote for. This is the only action
// vocabulary; legacy battle tokens ("move:1", "run", ...) are invalid.
const (
	ActionUp     = "up"
	ActionDown   = "down"
	ActionLeft   = "left"
	ActionRight  = "right"
	ActionA      = "a"
	ActionB      = "b"
	ActionStart  = "start"
	ActionSelect = "select"
)

// FallbackAction is applied when a tick has no votes or the winning action
// is not currently available.
const FallbackAction = ActionA

// Buttons lists every valid action in canonical order.
var Buttons = []string{
	ActionUp, ActionDown, ActionLeft, ActionRight,
	ActionA, ActionB, ActionStart, ActionSelect,
}

var buttonSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Buttons))
	for _, b := range Buttons {
		m[b] = struct{}{}
	}
	return m
}()

// ValidAction reports whether s is one of the eight button tokens.
func ValidAction(s string) bool {
	_, ok := buttonSet[s]
	return ok
}

// AvailableActions returns a fresh copy of the full button list. All eight
// buttons are always available; the slice is copied so callers can't mutate
// the canonical order.
func AvailableActions() []string {
	out := make([]string, len(Buttons))
	copy(out, Buttons)
	return out
}
