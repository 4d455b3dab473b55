package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/sentinel/config"
	"github.com/alejandrodnm/sentinel/internal/adapters/httpapi"
	"github.com/alejandrodnm/sentinel/internal/adapters/notify"
	"github.com/alejandrodnm/sentinel/internal/adapters/pipeline"
	"github.com/alejandrodnm/sentinel/internal/adapters/storage"
	"github.com/alejandrodnm/sentinel/internal/application/extraction"
	"github.com/alejandrodnm/sentinel/internal/application/ledger"
	"github.com/alejandrodnm/sentinel/internal/application/market"
	"github.com/alejandrodnm/sentinel/internal/application/orchestrator"
	"github.com/alejandrodnm/sentinel/internal/observability"
	"github.com/alejandrodnm/sentinel/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "use the offline fixture pipeline instead of the real API")
	once := flag.String("once", "", "evaluate one tip, print the result and exit")
	user := flag.String("user", "", "user id for -once (default: anonymous)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *dryRun {
		cfg.Pipeline.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	slog.Info("sentinel starting",
		"config", *configPath,
		"addr", cfg.Server.Addr,
		"dry_run", cfg.Pipeline.DryRun,
		"once", *once != "",
		"journal", cfg.Storage.Path,
	)

	metrics := observability.NewMetrics("sentinel")

	journal, err := storage.NewSQLiteJournal(cfg.Storage.Path, storage.Options{
		Retention: cfg.Storage.Retention,
		MaxRows:   cfg.Storage.MaxRows,
	})
	if err != nil {
		slog.Error("failed to open journal", "err", err, "path", cfg.Storage.Path)
		os.Exit(1)
	}
	defer journal.Close()

	console := notify.NewConsole()
	notifiers := notify.Multi{}
	if *once != "" {
		notifiers = append(notifiers, console)
	}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, "")
		if err != nil {
			slog.Warn("telegram disabled", "err", err)
		} else {
			slog.Info("telegram notifications enabled", "bot", tg.Username(), "chat", cfg.Telegram.ChatID)
			notifiers = append(notifiers, tg)
		}
	}

	sim := market.New(marketConfig(cfg), market.WithNotifier(notifiers), market.WithMetrics(metrics))
	defer sim.Close()

	led := ledger.New(cfg.Ledger.Capacity)
	orch := orchestrator.New(
		newPipeline(cfg.Pipeline),
		extraction.New(cfg.Policy.MaxCommissionPct),
		led,
		sim,
		journal,
		metrics,
		orchestrator.Config{
			PipelineTimeout:    cfg.Policy.PipelineTimeout,
			TradeMinConfidence: cfg.Policy.TradeMinConfidence,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once != "" {
		if err := runOnce(ctx, orch, sim, led, console, *once, *user); err != nil {
			slog.Error("tip evaluation failed", "err", err)
			sim.Close()
			journal.Close()
			os.Exit(1)
		}
		return
	}

	api := httpapi.New(httpapi.Deps{
		Submitter:      orch,
		Market:         sim,
		Ledger:         led,
		Journal:        journal,
		Metrics:        metrics,
		Logger:         slog.Default(),
		StreamInterval: cfg.Server.StreamInterval,
	})
	if err := serve(ctx, cfg.Server, api, sim); err != nil {
		slog.Error("server exited with error", "err", err)
		sim.Close()
		journal.Close()
		os.Exit(1)
	}

	slog.Info("sentinel stopped cleanly")
}

// serve runs the price loop and the HTTP server until ctx is cancelled.
func serve(ctx context.Context, cfg config.ServerConfig, api *httpapi.Server, sim *market.Simulator) error {
	go sim.Run(ctx)

	// Sin WriteTimeout: submit-tip puede tardar lo que el pipeline y el
	// stream es de larga duración.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sentinel listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	api.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func newPipeline(cfg config.PipelineConfig) ports.Pipeline {
	if cfg.DryRun {
		slog.Info("using offline fixture pipeline")
		return pipeline.NewFixture()
	}
	return pipeline.NewClient(pipeline.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		RatePerSec:  cfg.RatePerSec,
	})
}

func marketConfig(cfg *config.Config) market.Config {
	mc := market.DefaultConfig()
	m := cfg.Market
	if m.Pair != "" {
		mc.Pair = m.Pair
	}
	if m.InitialVolatilePrice > 0 {
		mc.InitialVolatilePrice = m.InitialVolatilePrice
	}
	if m.InitialStablePrice > 0 {
		mc.InitialStablePrice = m.InitialStablePrice
	}
	if m.TickInterval > 0 {
		mc.TickInterval = m.TickInterval
	}
	if m.SettleDelay > 0 {
		mc.SettleDelay = m.SettleDelay
	}
	if m.MaxTrades > 0 {
		mc.MaxTrades = m.MaxTrades
	}
	if m.RecentTrades > 0 {
		mc.RecentTrades = m.RecentTrades
	}
	if m.BaseNotionalUSD > 0 {
		mc.BaseNotionalUSD = m.BaseNotionalUSD
	}
	mc.MinConfidence = cfg.Policy.SimMinConfidence
	mc.MinQuality = cfg.Policy.SimMinQuality
	return mc
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
