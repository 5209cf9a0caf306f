package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/marketpulse/marketpulse/internal/cache"
	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/logging"
	"github.com/marketpulse/marketpulse/internal/provider"
	"github.com/marketpulse/marketpulse/internal/rooms"
	"github.com/marketpulse/marketpulse/internal/scheduler"
	"github.com/marketpulse/marketpulse/internal/server"
	"github.com/marketpulse/marketpulse/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// runGracefulShutdown tears components down in dependency order: no refresh
// may write to a destroyed cache, so the scheduler stops first; the
// transport closes last.
func runGracefulShutdown(sched *scheduler.Scheduler, store *cache.Cache, srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		sched.Stop()
		store.Destroy()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	clock := clockwork.NewRealClock()

	store := cache.New(clock, cache.DefaultSweepInterval)
	cmc := provider.NewCoinMarketCap(cfg.CMCAPIKey, cfg.CMCBaseURL, cfg.FearGreedURL, cfg.CMCRateLimit)
	sched := scheduler.New(store, cmc, clock)

	registry := rooms.NewRegistry[*ws.Client]()
	wsHandler := ws.NewHandler(registry, clock)

	// Every successful refresh fans out over the registry.
	unsubscribe := sched.OnUpdate(wsHandler.HandleUpdate)
	defer unsubscribe()

	market := server.NewMarketService(store, cmc)
	srv := server.New(cfg, market, wsHandler, registry, sched.Running)

	sched.Start()

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	<-runGracefulShutdown(sched, store, srv)
	slog.Info("Shutdown complete")
}
