// Package ticker drives the game. A processor runs the per-tick pipeline
// (tally, actuate, decode, publish, clear) for one phase mode; a supervisor
// watches the emulator RAM and starts whichever mode the game is in. The
// processor is the only component allowed to press buttons.
package ticker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cgp/crowdplay/internal/decoder"
	"github.com/cgp/crowdplay/internal/emulator"
	"github.com/cgp/crowdplay/internal/gamestate"
	"github.com/cgp/crowdplay/internal/metrics"
	"github.com/cgp/crowdplay/internal/protocol"
	"github.com/cgp/crowdplay/internal/votes"
)

// DefaultInterval between ticks.
const DefaultInterval = 15 * time.Second

// PushFunc delivers one freshly decoded state downstream. In relay mode this
// is the home client's state push; locally it feeds the broadcast hub. A push
// error fails the tick but the pipeline keeps running.
type PushFunc func(ctx context.Context, tick int, gameID string, state *protocol.GameState) error

// Sub-processor modes. Menu and dialogue phases run under the overworld
// processor; only battle gets its own.
const (
	ModeOverworld = "overworld"
	ModeBattle    = "battle"
)

// ModeFor maps a decoded phase to the sub-processor that should own it.
func ModeFor(phase string) string {
	if phase == protocol.PhaseBattle {
		return ModeBattle
	}
	return ModeOverworld
}

// Processor runs the tick pipeline for one game.
type Processor struct {
	emu      emulator.Emulator
	agg      *votes.Aggregator
	scores   *gamestate.Scores
	tracker  *gamestate.Tracker
	push     PushFunc
	metrics  *metrics.Metrics
	logger   *slog.Logger
	gameID   string
	interval time.Duration
	now      func() time.Time
}

// NewProcessor wires the pipeline. interval <= 0 selects the default.
func NewProcessor(emu emulator.Emulator, agg *votes.Aggregator, scores *gamestate.Scores, tracker *gamestate.Tracker, push PushFunc, m *metrics.Metrics, logger *slog.Logger, gameID string, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Processor{
		emu:      emu,
		agg:      agg,
		scores:   scores,
		tracker:  tracker,
		push:     push,
		metrics:  m,
		logger:   logger,
		gameID:   gameID,
		interval: interval,
		now:      time.Now,
	}
}

// Interval returns the configured tick period.
func (p *Processor) Interval() time.Duration { return p.interval }

// SetClock overrides the processor clock. Test hook.
func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// RunMode ticks at the configured interval until the context is cancelled or
// the game leaves mode. It returns the phase observed on exit so the
// supervisor can hand over. An in-flight tick always completes; cancellation
// only prevents the next one from starting.
func (p *Processor) RunMode(ctx context.Context, mode string) (string, error) {
	p.logger.Info("[Ticker] sub-processor starting", "mode", mode, "gameId", p.gameID, "interval", p.interval)
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return mode, ctx.Err()
		case <-t.C:
		}

		phase, err := p.Tick(ctx)
		if err != nil {
			// Log and retry on the next interval.
			p.logger.Error("[Ticker] tick skipped", "mode", mode, "error", err)
			continue
		}
		p.metrics.TicksProcessed.WithLabelValues(mode).Inc()
		if ModeFor(phase) != mode {
			p.logger.Info("[Ticker] phase changed, sub-processor stopping",
				"mode", mode, "phase", phase)
			return phase, nil
		}
	}
}

// Tick runs the pipeline once for the pending turn and returns the phase of
// the newly decoded state. Steps are strictly sequential.
func (p *Processor) Tick(ctx context.Context) (string, error) {
	started := p.now()
	defer func() {
		p.metrics.TickDuration.Observe(time.Since(started).Seconds())
	}()

	k, _ := p.tracker.Pending()

	tally, err := p.agg.TallyVotes(ctx, p.gameID, k)
	if err != nil {
		p.metrics.TickErrors.WithLabelValues("tally").Inc()
		return "", fmt.Errorf("tally tick %d: %w", k, err)
	}

	// Voter snapshot for outcome scoring, read before the keys are cleared.
	// Best-effort: a failed read just skips bonuses for this tick.
	voters, votersErr := p.agg.Votes(ctx, p.gameID, k)
	if votersErr != nil {
		p.logger.Warn("[Ticker] voter snapshot failed", "tick", k, "error", votersErr)
	}

	// The decoder always advertises the full button set, so filtering the
	// winner against availableActions reduces to vocabulary membership.
	action := tally.WinningAction
	if !protocol.ValidAction(action) {
		action = protocol.FallbackAction
	}

	if err := p.actuate(ctx, action); err != nil {
		p.metrics.TickErrors.WithLabelValues("emulator").Inc()
		return "", fmt.Errorf("actuate tick %d: %w", k, err)
	}

	ram, err := p.emu.ReadRAM(ctx)
	if err != nil {
		p.metrics.TickErrors.WithLabelValues("emulator").Inc()
		return "", fmt.Errorf("read ram tick %d: %w", k, err)
	}
	state := decoder.Decode(ram, p.gameID, k+1)

	p.tracker.Append(protocol.TurnRecord{
		Turn:   k,
		Action: action,
		Votes:  tally.TotalVotes,
		Phase:  state.Phase,
	})
	state.TurnHistory = p.tracker.History(gamestate.HistoryCap)
	state.SecondsRemaining = int(p.interval / time.Second)

	// Advance the pending turn before publishing: the relay flushes buffered
	// votes as soon as it sees the push, and those must land on turn k+1,
	// not on k where the imminent clear would wipe them.
	p.tracker.Begin(k+1, p.now())

	if err := p.push(ctx, k+1, p.gameID, state); err != nil {
		p.metrics.TickErrors.WithLabelValues("publish").Inc()
		return "", fmt.Errorf("publish tick %d: %w", k+1, err)
	}

	for agent, v := range voters {
		if err := p.scores.RecordOutcome(ctx, agent, v.Action == action); err != nil {
			p.logger.Warn("[Ticker] outcome score failed", "agentId", agent, "error", err)
		}
	}

	if err := p.agg.ClearVotes(ctx, p.gameID, k); err != nil {
		// Keys carry a TTL, so a failed clear self-heals.
		p.metrics.TickErrors.WithLabelValues("clear").Inc()
		p.logger.Warn("[Ticker] vote clear failed", "tick", k, "error", err)
	}

	p.logger.Info("[Ticker] tick applied",
		"tick", k, "action", action, "votes", tally.TotalVotes, "phase", state.Phase)
	return state.Phase, nil
}

func (p *Processor) actuate(ctx context.Context, action string) error {
	if err := p.emu.PressButton(ctx, emulator.Map(action)); err != nil {
		return fmt.Errorf("press %q: %w", action, err)
	}
	if extra := emulator.ExtraFrames(action); extra > 0 {
		if err := p.emu.AdvanceFrames(ctx, extra); err != nil {
			return fmt.Errorf("advance %d frames: %w", extra, err)
		}
	}
	return nil
}
