package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/robfig/cron/v3"

	"github.com/sdibella/coinfolio/internal/app"
	"github.com/sdibella/coinfolio/internal/config"
	"github.com/sdibella/coinfolio/internal/dashboard"
	"github.com/sdibella/coinfolio/internal/live"
	"github.com/sdibella/coinfolio/internal/logger"
	"github.com/sdibella/coinfolio/internal/watchlist"
)

func main() {
	configPath := flag.String("config", "coinfolio.yaml", "optional YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("dashboard failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Silent refresh from any existing refresh cookie.
	a.Session.Bootstrap(ctx)

	hub := live.NewHub(log)
	go hub.Run(ctx)
	detach := hub.Attach(a.Toasts, a.Bus)
	defer detach()

	tracker := a.Tracker()
	unfollow := tracker.Follow(ctx)
	defer unfollow()

	poller := watchlist.NewPoller(tracker, cfg.WatchlistPoll, log)
	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer poller.Stop()

	pruner := cron.New()
	if _, err := pruner.AddFunc("@hourly", a.Prune); err != nil {
		return fmt.Errorf("scheduling cache prune: %w", err)
	}
	pruner.Start()
	defer pruner.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.DashboardHost, cfg.DashboardPort)
	server, err := dashboard.New(dashboard.Config{
		App:     a,
		Tracker: tracker,
		Live:    hub,
		Addr:    addr,
		Log:     log,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("url", "http://"+addr).Str("api", a.Session.APIRoot()).Msg("coinfolio dashboard")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server exited")
	return nil
}
