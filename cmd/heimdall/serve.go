package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/theredcat/heimdall/internal/adapter"
	"github.com/theredcat/heimdall/internal/config"
	"github.com/theredcat/heimdall/internal/handler"
	"github.com/theredcat/heimdall/internal/hub"
	"github.com/theredcat/heimdall/internal/logging"
	"github.com/theredcat/heimdall/internal/repository/sqlite"
	"github.com/theredcat/heimdall/internal/service"
	"github.com/theredcat/heimdall/internal/watcher"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the topology server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	// Baseline logger for early startup messages
	logging.Init(logging.Config{Format: "auto", Level: "info", Component: "heimdall"})

	cfg, path, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Init(logging.Config{
		Format:    cfg.Log.Format,
		Level:     cfg.Log.Level,
		Component: "heimdall",
	})
	logger.Info().Str("version", Version).Str("config", path).Msg("Starting Heimdall")
	for _, line := range strings.Split(cfg.Summary(), "\n") {
		logger.Info().Msg(line)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	engine := service.NewEngine(logger, engineOptions(cfg, repo)...)
	defer engine.Close()
	if err := addSources(engine, cfg, logger); err != nil {
		return err
	}
	adapter.StartResolverRefresh(ctx, 0)

	sse := hub.New(logger, hub.WithReplay(func() interface{} {
		return currentTopology(engine)
	}))
	go sse.Run(ctx)

	events := make(chan service.Event, 64)
	unsubscribe := engine.Events().Subscribe(events)
	defer unsubscribe()
	go forwardEvents(ctx, events, sse)

	poller := service.NewPoller(engine, sse, cfg.Poll.Interval.Duration(), cfg.Poll.IdleInterval.Duration(), logger)
	go poller.Run(ctx)

	if path != "" {
		w := watcher.New(logger, func(string) {
			reloadConfig(ctx, path, engine, poller, logger)
		}, path)
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("Config watcher stopped")
			}
		}()
	}

	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(reloadChan)

	mux := http.NewServeMux()
	handler.NewTopologyHandler(engine, repo, logger).Register(mux)
	mux.Handle("GET /events", sse)
	mux.Handle("GET /metrics", promhttp.Handler())

	// No write timeout: event streams and attach sessions are long lived.
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Chain(mux, handler.Recover, handler.CORS, handler.Logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	for {
		select {
		case <-reloadChan:
			if path == "" {
				logger.Info().Msg("Received SIGHUP without a config file, ignoring")
				continue
			}
			logger.Info().Msg("Received SIGHUP, reloading configuration...")
			reloadConfig(ctx, path, engine, poller, logger)
			poller.Trigger()

		case err := <-serveErr:
			return fmt.Errorf("http server: %w", err)

		case <-ctx.Done():
			logger.Info().Msg("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("Server shutdown error")
			}
			logger.Info().Msg("Server stopped")
			return nil
		}
	}
}

// currentTopology is the event a newly connected consumer starts from
func currentTopology(engine *service.Engine) service.Event {
	return service.Event{
		Type: service.EventTopologyChanged,
		Payload: service.TopologyChanged{
			Topology: engine.Snapshot(),
			Graph:    engine.Graph(),
		},
	}
}

// broadcaster is the part of the hub events are forwarded to
type broadcaster interface {
	Broadcast(event interface{})
}

func forwardEvents(ctx context.Context, events <-chan service.Event, b broadcaster) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			b.Broadcast(event)
		}
	}
}

// reloadConfig applies the settings that can change without a restart:
// log level, display options and poll intervals.
func reloadConfig(ctx context.Context, path string, engine *service.Engine, poller *service.Poller, logger zerolog.Logger) {
	cfg, _, err := config.LoadFromPath(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to reload configuration, keeping previous settings")
		return
	}

	logging.SetLevel(cfg.Log.Level)
	engine.SetOptions(ctx, cfg.Display.Options())
	poller.SetIntervals(cfg.Poll.Interval.Duration(), cfg.Poll.IdleInterval.Duration())

	logger.Info().
		Str("path", path).
		Dur("poll_interval", cfg.Poll.Interval.Duration()).
		Dur("idle_interval", cfg.Poll.IdleInterval.Duration()).
		Msg("Runtime configuration reloaded")
}
