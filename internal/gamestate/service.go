package gamestate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cgp/crowdplay/internal/decoder"
	"github.com/cgp/crowdplay/internal/emulator"
	"github.com/cgp/crowdplay/internal/protocol"
	"github.com/cgp/crowdplay/internal/votes"
)

// Service answers per-agent game-state queries and accepts votes for the
// pending tick. It reads the emulator but never writes to it; button presses
// belong to the tick processor alone.
type Service struct {
	emu     emulator.Emulator
	votes   *votes.Aggregator
	scores  *Scores
	tracker *Tracker
	gameID  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the query surface over the shared tick tracker.
func NewService(emu emulator.Emulator, agg *votes.Aggregator, scores *Scores, tracker *Tracker, gameID string, logger *slog.Logger) *Service {
	return &Service{
		emu:     emu,
		votes:   agg,
		scores:  scores,
		tracker: tracker,
		gameID:  gameID,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// GetGameState decodes the current RAM image at the pending turn and overlays
// the per-agent fields. agentID may be empty for an anonymous snapshot.
func (s *Service) GetGameState(ctx context.Context, agentID string) (*protocol.GameState, error) {
	ram, err := s.emu.ReadRAM(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ram: %w", err)
	}

	turn, _ := s.tracker.Pending()
	state := decoder.Decode(ram, s.gameID, turn)
	state.SecondsRemaining = s.tracker.SecondsRemaining(s.now())
	state.TurnHistory = s.tracker.History(HistoryCap)

	if err := s.Personalize(ctx, state, agentID); err != nil {
		return nil, err
	}
	return state, nil
}

// Personalize fills the per-agent overlay (score, rank, field size, streak)
// on an already-decoded state. Score reads are best-effort: a failed lookup
// leaves the fields zero rather than failing the whole state read.
func (s *Service) Personalize(ctx context.Context, state *protocol.GameState, agentID string) error {
	if agentID == "" {
		standing, err := s.scores.StandingFor(ctx, agentID)
		if err == nil {
			state.TotalAgents = standing.TotalAgents
		}
		return nil
	}
	standing, err := s.scores.StandingFor(ctx, agentID)
	if err != nil {
		s.logger.Warn("[GameState] score overlay failed", "agentId", agentID, "error", err)
		return nil
	}
	state.YourScore = standing.Score
	state.YourRank = standing.Rank
	state.TotalAgents = standing.TotalAgents
	state.Streak = standing.Streak
	return nil
}

// SubmitAction records one vote for the pending tick and returns the turn it
// was counted toward. Invalid actions are rejected before touching the store.
func (s *Service) SubmitAction(ctx context.Context, agentID, action string, ts int64) (int, error) {
	if !protocol.ValidAction(action) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if ts <= 0 {
		ts = s.now().UnixMilli()
	}

	turn, _ := s.tracker.Pending()
	if err := s.votes.RecordVote(ctx, s.gameID, turn, agentID, action, ts); err != nil {
		return 0, err
	}
	if err := s.scores.RecordVote(ctx, agentID); err != nil {
		s.logger.Warn("[GameState] participation score failed", "agentId", agentID, "error", err)
	}
	return turn, nil
}

// DrainBuffered empties the relay vote buffer into the aggregator at the
// pending turn. Server-mode backends call this after every state publish, so
// votes parked by relay replicas reach the tally without a home connection.
// Returns the number of votes ingested; individual rejects are logged and
// skipped.
func (s *Service) DrainBuffered(ctx context.Context, buffer *votes.Buffer) (int, error) {
	batch, err := buffer.Drain(ctx, s.gameID)
	if err != nil {
		return 0, fmt.Errorf("drain vote buffer: %w", err)
	}
	ingested := 0
	for _, v := range batch {
		if _, err := s.SubmitAction(ctx, v.AgentID, v.Action, v.Timestamp); err != nil {
			s.logger.Warn("[GameState] buffered vote rejected",
				"agentId", v.AgentID, "action", v.Action, "error", err)
			continue
		}
		ingested++
	}
	return ingested, nil
}

// GetHistory returns up to limit completed turns, newest last.
func (s *Service) GetHistory(limit int) []protocol.TurnRecord {
	return s.tracker.History(limit)
}

// GetLeaderboard returns the current top-n standings.
func (s *Service) GetLeaderboard(ctx context.Context, n int) ([]Entry, error) {
	return s.scores.Leaderboard(ctx, n)
}

// ErrInvalidAction marks vote actions outside the eight-button vocabulary.
var ErrInvalidAction = fmt.Errorf("action not in the allowed set")
