package emulator

import (
	"context"
	"sync"
)

// Fake is a deterministic scripted emulator used by tests and local runs.
// It records every press and frame advance and lets callers mutate the RAM
// image between ticks via hooks.
type Fake struct {
	mu       sync.Mutex
	ram      []byte
	Presses  []string
	Advanced []int

	// OnPress, when set, mutates the RAM image in response to a button.
	OnPress func(ram []byte, button string)
}

// NewFake creates a fake with a zeroed 64 KiB image.
func NewFake() *Fake {
	return &Fake{ram: make([]byte, 0x10000)}
}

// LoadRAM replaces the RAM image.
func (f *Fake) LoadRAM(ram []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ram = make([]byte, 0x10000)
	copy(f.ram, ram)
}

// Poke writes one byte. Test hook.
func (f *Fake) Poke(addr int, value byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ram[addr] = value
}

func (f *Fake) PressButton(ctx context.Context, button string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Presses = append(f.Presses, button)
	if f.OnPress != nil {
		f.OnPress(f.ram, button)
	}
	return nil
}

func (f *Fake) AdvanceFrames(ctx context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Advanced = append(f.Advanced, n)
	return nil
}

func (f *Fake) ReadRAM(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.ram))
	copy(out, f.ram)
	return out, nil
}
