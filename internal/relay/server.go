package relay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cgp/crowdplay/internal/auth"
	"github.com/cgp/crowdplay/internal/bans"
	"github.com/cgp/crowdplay/internal/config"
	"github.com/cgp/crowdplay/internal/gamestate"
	"github.com/cgp/crowdplay/internal/kv"
	"github.com/cgp/crowdplay/internal/metrics"
	"github.com/cgp/crowdplay/internal/protocol"
	"github.com/cgp/crowdplay/internal/ratelimit"
	"github.com/cgp/crowdplay/internal/votes"
)

// Server is one relay replica.
type Server struct {
	cfg     *config.Config
	kv      kv.Store
	creds   *auth.Store
	limiter *ratelimit.Limiter
	bans    *bans.Registry
	buffer  *votes.Buffer
	scores  *gamestate.Scores
	cache   *StateCache
	hub     *Hub
	home    *HomeSession
	metrics *metrics.Metrics
	logger  *slog.Logger
	replica string
	now     func() time.Time
}

// NewServer wires one replica over the shared KV store.
func NewServer(cfg *config.Config, store kv.Store, m *metrics.Metrics, logger *slog.Logger) *Server {
	cache := &StateCache{}
	buffer := votes.NewBuffer(store)
	return &Server{
		cfg:     cfg,
		kv:      store,
		creds:   auth.NewStore(store),
		limiter: ratelimit.New(store),
		bans: bans.New(store, bans.Options{
			ViolationWindow:    time.Duration(cfg.AutoBan.WindowSeconds) * time.Second,
			RateLimitThreshold: cfg.AutoBan.RateLimitThreshold,
			InvalidThreshold:   cfg.AutoBan.InvalidThreshold,
			AutoBanDuration:    time.Duration(cfg.AutoBan.DurationSeconds) * time.Second,
		}),
		buffer:  buffer,
		scores:  gamestate.NewScores(store, cfg.Game.ID),
		cache:   cache,
		hub:     NewHub(cache, m, logger),
		home:    NewHomeSession(cfg.Relay.Secret, store, buffer, m, logger),
		metrics: m,
		logger:  logger,
		replica: uuid.New().String(),
		now:     time.Now,
	}
}

// Router builds the full public surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/vote", s.requireAgent(s.handleVote)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/state", s.requireAgent(s.handleState)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/leaderboard", s.requireAgent(s.handleLeaderboard)).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/agent/stream", s.hub.HandleAgentStream)
	r.HandleFunc("/home/connect", s.home.HandleHomeConnect)

	s.registerAdminRoutes(r)
	return r
}

// Run subscribes to the cross-replica broadcast channel and republishes every
// received state to this replica's agent connections. Blocks until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	unsubscribe, err := s.kv.Subscribe(ctx, protocol.BroadcastChannel, s.handleBroadcast)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.BroadcastChannel, err)
	}
	defer unsubscribe()
	s.logger.Info("[Relay] subscribed to broadcast channel", "channel", protocol.BroadcastChannel)

	<-ctx.Done()
	return ctx.Err()
}

func (s *Server) handleBroadcast(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("[Relay] dropping broadcast", "error", err)
		return
	}
	update, ok := msg.(protocol.StateUpdate)
	if !ok {
		s.logger.Warn("[Relay] unexpected broadcast message", "type", fmt.Sprintf("%T", msg))
		return
	}

	s.cache.Set(update.TickID, update.GameID, update.State)
	s.hub.Broadcast(data)
	s.logger.Debug("[Relay] state fanned out", "tick", update.TickID, "agents", s.hub.Count())
}

type registerRequest struct {
	AgentID string `json:"agentId"`
}

type registerResponse struct {
	APIKey   string `json:"apiKey"`
	AgentID  string `json:"agentId"`
	Plan     string `json:"plan"`
	RPSLimit int    `json:"rpsLimit"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if gate := s.cfg.Secrets.Registration; gate != "" {
		presented := r.Header.Get("X-Registration-Secret")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(gate)) != 1 {
			writeError(w, http.StatusUnauthorized, protocol.CodeInvalidRegSec, "invalid registration secret")
			return
		}
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeParseError, "invalid JSON body")
		return
	}

	token, cred, err := s.creds.Register(r.Context(), req.AgentID)
	switch err {
	case nil:
	case auth.ErrInvalidAgentID:
		writeError(w, http.StatusBadRequest, protocol.CodeValidation,
			"agentId must be 3-64 characters of [A-Za-z0-9_-]")
		return
	case auth.ErrAgentExists:
		writeError(w, http.StatusConflict, protocol.CodeAgentExists, "agent id already registered")
		return
	default:
		s.logger.Error("[Relay] registration failed", "agentId", req.AgentID, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "registration failed")
		return
	}

	s.logger.Info("[Relay] agent registered", "agentId", cred.AgentID, "plan", cred.Plan)
	writeJSON(w, http.StatusOK, registerResponse{
		APIKey:   token,
		AgentID:  cred.AgentID,
		Plan:     string(cred.Plan),
		RPSLimit: cred.RPSLimit,
	})
}

type voteRequest struct {
	Action string `json:"action"`
}

type voteResponse struct {
	Accepted bool   `json:"accepted"`
	Tick     int    `json:"tick"`
	Action   string `json:"action"`
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, cred auth.Credential) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.CodeParseError, "invalid JSON body")
		return
	}
	if !protocol.ValidAction(req.Action) {
		s.metrics.VotesRejected.WithLabelValues("invalid_action").Inc()
		writeError(w, http.StatusBadRequest, protocol.CodeInvalidAction,
			fmt.Sprintf("action %q is not one of the eight buttons", req.Action))
		return
	}

	if err := s.buffer.Put(r.Context(), s.cfg.Game.ID, cred.AgentID, req.Action, s.now().UnixMilli()); err != nil {
		s.logger.Error("[Relay] vote buffer failed", "agentId", cred.AgentID, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "vote could not be buffered")
		return
	}

	s.metrics.VotesAccepted.WithLabelValues(req.Action).Inc()
	writeJSON(w, http.StatusAccepted, voteResponse{
		Accepted: true,
		Tick:     s.cache.Tick(),
		Action:   req.Action,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, cred auth.Credential) {
	state, _, _, ok := s.cache.Get()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, protocol.CodeStateMissing,
			"no state observed on this replica yet")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, cred auth.Credential) {
	n := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			n = parsed
		}
	}
	entries, err := s.scores.Leaderboard(r.Context(), n)
	if err != nil {
		s.logger.Error("[Relay] leaderboard read failed", "error", err)
		writeError(w, http.StatusInternalServerError, protocol.CodeInternal, "leaderboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	buffered, err := s.buffer.Size(r.Context(), s.cfg.Game.ID)
	if err != nil {
		buffered = -1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"replica":         s.replica,
		"time":            s.now().UTC().Format(time.RFC3339),
		"homeConnected":   s.home.Connected(),
		"cachedStateTick": s.cache.Tick(),
		"bufferedVotes":   buffered,
		"connectedAgents": s.hub.Count(),
	})
}
