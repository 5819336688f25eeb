// The relay is the public face of the control plane: agent registration,
// vote intake, state queries, the broadcast WebSocket and the trusted home
// ingress. Any number of replicas may run behind a load balancer; they share
// everything through Redis.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cgp/crowdplay/internal/config"
	"github.com/cgp/crowdplay/internal/kv"
	"github.com/cgp/crowdplay/internal/metrics"
	"github.com/cgp/crowdplay/internal/relay"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("[Relay] configuration invalid", "error", err)
		os.Exit(1)
	}

	store, err := kv.NewRedis(cfg.Redis.URL)
	if err != nil {
		logger.Error("[Relay] redis connection failed", "url", cfg.Redis.URL, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New()
	srv := relay.NewServer(cfg, store, m, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  cfg.IdleTimeout(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("[Relay] broadcast loop exited", "error", err)
		}
	}()

	go func() {
		logger.Info("[Relay] listening", "addr", httpServer.Addr, "game", cfg.Game.ID)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("[Relay] server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("[Relay] shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Relay] shutdown failed", "error", err)
	}
}
