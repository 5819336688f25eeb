// The backend owns the emulator. It runs the tick pipeline, decodes RAM into
// state documents, and either pushes them to a remote relay over the home
// WebSocket (RELAY_MODE=client) or publishes them straight onto the shared
// broadcast channel for colocated relay replicas (RELAY_MODE=server). It also
// serves a small local query API backed by the game-state service.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cgp/crowdplay/internal/config"
	"github.com/cgp/crowdplay/internal/emulator"
	"github.com/cgp/crowdplay/internal/gamestate"
	"github.com/cgp/crowdplay/internal/homeclient"
	"github.com/cgp/crowdplay/internal/kv"
	"github.com/cgp/crowdplay/internal/metrics"
	"github.com/cgp/crowdplay/internal/protocol"
	"github.com/cgp/crowdplay/internal/ticker"
	"github.com/cgp/crowdplay/internal/votes"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("[Backend] configuration invalid", "error", err)
		os.Exit(1)
	}

	store, err := kv.NewRedis(cfg.Redis.URL)
	if err != nil {
		logger.Error("[Backend] redis connection failed", "url", cfg.Redis.URL, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New()

	// The emulator binding is the deployment's integration point. The
	// scripted fake keeps the pipeline runnable without hardware attached;
	// RAM_IMAGE seeds it with a captured memory snapshot.
	emu := emulator.NewFake()
	if path := cfg.Emulator.RAMImage; path != "" {
		image, err := os.ReadFile(path)
		if err != nil {
			logger.Error("[Backend] ram image unreadable", "path", path, "error", err)
			os.Exit(1)
		}
		emu.LoadRAM(image)
		logger.Info("[Backend] ram image loaded", "path", path, "bytes", len(image))
	}

	tracker := gamestate.NewTracker(cfg.TickInterval())
	agg := votes.New(store)
	scores := gamestate.NewScores(store, cfg.Game.ID)
	service := gamestate.NewService(emu, agg, scores, tracker, cfg.Game.ID, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vote batches from the relay land in the aggregator at whatever tick is
	// pending when they arrive.
	ingestBatch := func(batch protocol.VoteBatch) {
		for _, v := range batch.Votes {
			if _, err := service.SubmitAction(ctx, v.AgentID, v.Action, v.Timestamp); err != nil {
				logger.Warn("[Backend] batched vote rejected",
					"agentId", v.AgentID, "action", v.Action, "error", err)
			}
		}
		logger.Info("[Backend] vote batch ingested", "tick", batch.TickID, "count", len(batch.Votes))
	}

	var push ticker.PushFunc
	var home *homeclient.Client
	if cfg.Relay.Mode == config.ModeClient {
		home = homeclient.New(cfg.Relay.URL, cfg.Relay.Secret, cfg.Game.ID, ingestBatch, logger)
		go func() {
			if err := home.Run(ctx); err != nil && err != context.Canceled {
				logger.Error("[Backend] home client exited", "error", err)
			}
		}()
		push = home.PushState
	} else {
		// Without a home connection nothing else drains the relay vote
		// buffer, so the server-mode push pulls it into the aggregator
		// right after each publish, mirroring the relay's flush-on-push.
		buffer := votes.NewBuffer(store)
		push = func(ctx context.Context, tick int, gameID string, state *protocol.GameState) error {
			data, err := protocol.Encode(protocol.StateUpdate{TickID: tick, GameID: gameID, State: state})
			if err != nil {
				return err
			}
			if err := store.Publish(ctx, protocol.BroadcastChannel, data); err != nil {
				return err
			}
			if n, err := service.DrainBuffered(ctx, buffer); err != nil {
				logger.Warn("[Backend] vote buffer drain failed", "tick", tick, "error", err)
			} else if n > 0 {
				logger.Info("[Backend] buffered votes ingested", "tick", tick, "count", n)
			}
			return nil
		}
	}

	proc := ticker.NewProcessor(emu, agg, scores, tracker, push, m, logger,
		cfg.Game.ID, cfg.TickInterval())
	sup := ticker.NewSupervisor(proc, emu, cfg.Game.ID, ticker.DefaultPoll, logger)
	go func() {
		if err := sup.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("[Backend] supervisor exited", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      backendRouter(service, home, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  cfg.IdleTimeout(),
	}
	go func() {
		logger.Info("[Backend] listening", "addr", httpServer.Addr,
			"game", cfg.Game.ID, "relayMode", cfg.Relay.Mode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("[Backend] server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("[Backend] shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Backend] shutdown failed", "error", err)
	}
}

// backendRouter exposes the local query surface: current state, turn history,
// health and metrics. The public vote path stays on the relay; this surface
// is for operators and colocated tooling.
func backendRouter(service *gamestate.Service, home *homeclient.Client, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/state", func(w http.ResponseWriter, req *http.Request) {
		state, err := service.GetGameState(req.Context(), req.URL.Query().Get("agentId"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(state)
	}).Methods(http.MethodGet)

	r.HandleFunc("/history", func(w http.ResponseWriter, req *http.Request) {
		limit := 0
		if raw := req.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"history": service.GetHistory(limit)})
	}).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		relayState := "local"
		if home != nil {
			relayState = home.State()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "ok",
			"time":      time.Now().UTC().Format(time.RFC3339),
			"relayMode": cfg.Relay.Mode,
			"relay":     relayState,
		})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}
