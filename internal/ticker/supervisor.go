package ticker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cgp/crowdplay/internal/decoder"
	"github.com/cgp/crowdplay/internal/emulator"
)

// DefaultPoll is the watchdog cadence.
const DefaultPoll = 500 * time.Millisecond

// Supervisor keeps exactly one sub-processor alive. It polls the emulator
// RAM and, whenever no sub-processor is running (startup, battle start,
// battle end), detects the current phase and launches the matching one.
// Handing transitions to a watchdog avoids the battle and overworld
// processors restarting each other directly.
type Supervisor struct {
	proc   *Processor
	emu    emulator.Emulator
	gameID string
	poll   time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSupervisor creates the watchdog. poll <= 0 selects the default.
func NewSupervisor(proc *Processor, emu emulator.Emulator, gameID string, poll time.Duration, logger *slog.Logger) *Supervisor {
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &Supervisor{proc: proc, emu: emu, gameID: gameID, poll: poll, logger: logger}
}

// Run blocks until the context is cancelled. Sub-processors launched by the
// watchdog share the context, so cancellation winds everything down.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("[Ticker] supervisor starting", "gameId", s.gameID, "poll", s.poll)
	t := time.NewTicker(s.poll)
	defer t.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-t.C:
		}

		s.mu.Lock()
		busy := s.running
		if !busy {
			s.running = true
		}
		s.mu.Unlock()
		if busy {
			continue
		}

		mode, err := s.detectMode(ctx)
		if err != nil {
			s.logger.Warn("[Ticker] phase probe failed", "error", err)
			s.setIdle()
			continue
		}

		wg.Add(1)
		go func(mode string) {
			defer wg.Done()
			defer s.setIdle()
			if _, err := s.proc.RunMode(ctx, mode); err != nil && err != context.Canceled {
				s.logger.Error("[Ticker] sub-processor exited", "mode", mode, "error", err)
			}
		}(mode)
	}
}

func (s *Supervisor) setIdle() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Supervisor) detectMode(ctx context.Context) (string, error) {
	ram, err := s.emu.ReadRAM(ctx)
	if err != nil {
		return "", err
	}
	turn, _ := s.proc.tracker.Pending()
	return ModeFor(decoder.Decode(ram, s.gameID, turn).Phase), nil
}
