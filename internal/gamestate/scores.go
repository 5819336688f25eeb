package gamestate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cgp/crowdplay/internal/kv"
)

// Scoring is best-effort: a zset of points per agent plus a streak hash.
// Nothing here is durable or exact; counters are nonnegative and resets are
// tolerated.
const (
	pointsPerVote = 1
	pointsPerWin  = 5
)

// Scores keeps the per-game leaderboard.
type Scores struct {
	kv     kv.Store
	gameID string
}

// NewScores creates the score book for one game.
func NewScores(store kv.Store, gameID string) *Scores {
	return &Scores{kv: store, gameID: gameID}
}

func (s *Scores) scoresKey() string { return "crowdplay:scores:" + s.gameID }
func (s *Scores) streakKey() string { return "crowdplay:streak:" + s.gameID }

// RecordVote awards participation points for an accepted vote.
func (s *Scores) RecordVote(ctx context.Context, agentID string) error {
	_, err := s.kv.ZIncrBy(ctx, s.scoresKey(), pointsPerVote, agentID)
	return err
}

// RecordOutcome is called once per tick per voter: agents whose vote matched
// the winning action get bonus points and extend their streak; the rest
// reset to zero.
func (s *Scores) RecordOutcome(ctx context.Context, agentID string, matched bool) error {
	if !matched {
		return s.kv.HSet(ctx, s.streakKey(), map[string]string{agentID: "0"})
	}
	if _, err := s.kv.ZIncrBy(ctx, s.scoresKey(), pointsPerWin, agentID); err != nil {
		return err
	}
	streak, err := s.kv.HGet(ctx, s.streakKey(), agentID)
	if err != nil && err != kv.ErrNotFound {
		return err
	}
	n, _ := strconv.Atoi(streak)
	return s.kv.HSet(ctx, s.streakKey(), map[string]string{agentID: strconv.Itoa(n + 1)})
}

// Standing is one agent's view of the leaderboard.
type Standing struct {
	Score       int
	Rank        int // 1-based; 0 when unranked
	TotalAgents int
	Streak      int
}

// StandingFor reads an agent's score, rank, streak and the field size.
func (s *Scores) StandingFor(ctx context.Context, agentID string) (Standing, error) {
	var out Standing

	total, err := s.kv.ZCard(ctx, s.scoresKey())
	if err != nil {
		return out, fmt.Errorf("score count: %w", err)
	}
	out.TotalAgents = int(total)

	score, err := s.kv.ZScore(ctx, s.scoresKey(), agentID)
	switch err {
	case nil:
		out.Score = int(score)
	case kv.ErrNotFound:
		return out, nil
	default:
		return out, fmt.Errorf("score lookup: %w", err)
	}

	rank, err := s.kv.ZRevRank(ctx, s.scoresKey(), agentID)
	if err == nil {
		out.Rank = int(rank) + 1
	} else if err != kv.ErrNotFound {
		return out, fmt.Errorf("rank lookup: %w", err)
	}

	streak, err := s.kv.HGet(ctx, s.streakKey(), agentID)
	if err == nil {
		out.Streak, _ = strconv.Atoi(streak)
	} else if err != kv.ErrNotFound {
		return out, fmt.Errorf("streak lookup: %w", err)
	}
	return out, nil
}

// Entry is one leaderboard row.
type Entry struct {
	AgentID string `json:"agentId"`
	Score   int    `json:"score"`
	Rank    int    `json:"rank"`
}

// Leaderboard returns the top n agents by score.
func (s *Scores) Leaderboard(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.kv.ZRevRangeWithScores(ctx, s.scoresKey(), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]Entry, len(rows))
	for i, z := range rows {
		out[i] = Entry{AgentID: z.Member, Score: int(z.Score), Rank: i + 1}
	}
	return out, nil
}
