// Package emulator defines the back end's port to the Game Boy emulator.
// The emulator itself is an external collaborator; only button injection,
// frame advance and RAM reads are required. The tick processor is the sole
// writer (button presses, frame advances); other components may only read.
package emulator

import "context"

// Buttons as the emulator names them; mapping from vote actions is in Map.
const (
	ButtonUp     = "UP"
	ButtonDown   = "DOWN"
	ButtonLeft   = "LEFT"
	ButtonRight  = "RIGHT"
	ButtonA      = "A"
	ButtonB      = "B"
	ButtonStart  = "START"
	ButtonSelect = "SELECT"
)

// Map converts a vote action token to an emulator button. Unknown actions
// map to A, matching the tick processor's fallback.
func Map(action string) string {
	switch action {
	case "up":
		return ButtonUp
	case "down":
		return ButtonDown
	case "left":
		return ButtonLeft
	case "right":
		return ButtonRight
	case "b":
		return ButtonB
	case "start":
		return ButtonStart
	case "select":
		return ButtonSelect
	default:
		return ButtonA
	}
}

// ExtraFrames returns the number of additional frames to advance after a
// button press: movement gets 6, start gets 2, everything else none.
func ExtraFrames(action string) int {
	switch action {
	case "up", "down", "left", "right":
		return 6
	case "start":
		return 2
	default:
		return 0
	}
}

// Emulator is the pluggable back end.
type Emulator interface {
	// PressButton injects one button press.
	PressButton(ctx context.Context, button string) error

	// AdvanceFrames steps the emulation forward n frames.
	AdvanceFrames(ctx context.Context, n int) error

	// ReadRAM returns a copy of the full 64 KiB memory image.
	ReadRAM(ctx context.Context) ([]byte, error)
}
