package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lysyi3m/news-relay/app/api"
	"github.com/lysyi3m/news-relay/app/cfg"
	"github.com/lysyi3m/news-relay/app/feed"
	"github.com/lysyi3m/news-relay/app/ledger"
	"github.com/lysyi3m/news-relay/app/metrics"
	"github.com/lysyi3m/news-relay/app/notifier"
	"github.com/lysyi3m/news-relay/app/state"
	"github.com/lysyi3m/news-relay/app/tasks"
	"github.com/lysyi3m/news-relay/app/tenant"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		if errors.Is(err, cfg.ErrMissingToken) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg)

	if err := run(appCfg); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(appCfg *cfg.Cfg) {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if appCfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting News Relay", "version", appCfg.Version, "timezone", appCfg.Location.String())

	registry := feed.NewRegistry(appCfg.FeedsDir)
	if err := registry.Run(); err != nil {
		return fmt.Errorf("failed to load feed sources: %w", err)
	}
	slog.Info("Feed sources loaded", "categories", registry.Categories())

	backend, err := state.Open(appCfg.StateBackend, appCfg.StateDir, appCfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open state backend: %w", err)
	}
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sent := ledger.New(backend, appCfg.LedgerCapacity)
	if err := sent.Load(ctx); err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	store := tenant.NewStore(backend)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load tenant configs: %w", err)
	}
	slog.Info("State loaded", "backend", appCfg.StateBackend, "ledger_ids", sent.Len(), "tenants", store.Len())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)
	collector.SetLedgerSize(sent.Len())

	fetcherOpts := []feed.Option{
		feed.WithRetries(appCfg.FetchRetries),
		feed.WithRecorder(collector),
		feed.WithUserAgent(appCfg.UserAgent),
	}
	if appCfg.FetchTimeout > 0 {
		fetcherOpts = append(fetcherOpts, feed.WithRequestTimeout(appCfg.FetchTimeout))
	}
	if appCfg.LanguageFlags {
		fetcherOpts = append(fetcherOpts, feed.WithTagger(feed.NewLanguageTagger()))
	}
	if appCfg.AllowPrivateFeeds {
		slog.Warn("Private feed endpoints are allowed")
	}
	client := feed.NewHTTPClient(2*time.Minute, appCfg.AllowPrivateFeeds)
	fetcher := feed.NewFetcher(registry, client, fetcherOpts...)

	gate := tasks.NewGate()
	fatalErrChan := make(chan error, 2)

	var n notifier.Notifier
	if appCfg.DryRun {
		slog.Warn("Dry run: deliveries are logged, not sent")
		n = notifier.NewLogNotifier()
		gate.Open()
	} else {
		discord := notifier.NewDiscord(appCfg.Token, notifier.WithBaseURL(appCfg.DiscordAPIURL))
		n = discord
		go func() {
			if err := discord.Connect(ctx); err != nil {
				fatalErrChan <- err
				return
			}
			gate.Open()
		}()
	}

	dispatcher := tasks.NewDispatcher(fetcher, sent, store, registry, n,
		tasks.WithDeliveryDelay(appCfg.DeliveryDelay),
		tasks.WithRecorder(collector),
		tasks.WithLocation(appCfg.Location),
	)

	slog.Info("Starting dispatch scheduler", "interval", appCfg.CheckInterval)
	scheduler := tasks.NewScheduler(dispatcher, gate, appCfg.CheckInterval)
	scheduler.Start()
	defer scheduler.Stop()

	service := tenant.NewService(store, registry)
	handler := api.NewHandler(service, registry, fetcher, scheduler, dispatcher, store, sent, gate)
	router := api.NewServer(handler, appCfg.APIAccessKey, reg)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatalErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("News Relay started successfully")

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-fatalErrChan:
	}

	slog.Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler and backend are closed via defer
	return runErr
}
