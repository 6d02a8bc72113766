package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/crawlai/crawl-engine/app/api"
	"github.com/crawlai/crawl-engine/app/cfg"
	"github.com/crawlai/crawl-engine/app/database"
	"github.com/crawlai/crawl-engine/app/fetch"
	"github.com/crawlai/crawl-engine/app/health"
	"github.com/crawlai/crawl-engine/app/ingest"
	"github.com/crawlai/crawl-engine/app/keyword"
	"github.com/crawlai/crawl-engine/app/notify"
	"github.com/crawlai/crawl-engine/app/sources"
	"github.com/crawlai/crawl-engine/app/stats"
	"github.com/crawlai/crawl-engine/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}

	slog.Info("Crawl engine shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting crawl engine", "version", appCfg.Version, "db", appCfg.DBPath, "workers", appCfg.WorkerCount)

	if dir := filepath.Dir(appCfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := database.OpenStore(appCfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configCache := sources.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	if err := configCache.Sync(ctx, store.Sources); err != nil {
		return err
	}
	slog.Info("Source configurations loaded", "count", configCache.GetConfigCount(), "dir", appCfg.SourcesDir)

	registry := keyword.NewRegistry(appCfg.ScoreNormalization)
	if err := keyword.Reload(registry, appCfg.KeywordsFile); err != nil {
		return fmt.Errorf("failed to load keyword groups: %w", err)
	}

	fetchers := fetch.Fetchers{
		RSS: fetch.NewRssFetcher(&http.Client{Timeout: appCfg.FetchTimeout}, appCfg.UserAgent),
	}
	browser, err := fetch.NewChromeBrowser(appCfg.UserAgent)
	if err != nil {
		slog.Warn("Headless browser unavailable, web sources will fail", "error", err)
	} else {
		defer browser.Close()
		fetchers.Web = fetch.NewWebFetcher(browser, fetch.NewContentExtractor(), appCfg.MaxListingLinks)
	}

	notifier, closeNotifier, err := buildNotifier(ctx, appCfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	pipeline := ingest.NewPipeline(fetchers, store.Sources, store.Contents, registry,
		health.NewTracker(appCfg.FailureThreshold), notifier, ingest.Options{
			FetchTimeout:    appCfg.FetchTimeout,
			NotifyThreshold: appCfg.NotifyThreshold,
		})

	scheduler := tasks.NewScheduler(store.Sources, pipeline, tasks.Options{
		WorkerCount: appCfg.WorkerCount,
		QueueSize:   appCfg.QueueSize,
		TickSpec:    appCfg.TickSpec,
	})
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	if _, err := scheduler.Tick(ctx); err != nil {
		slog.Warn("Initial tick failed", "error", err)
	}

	handler := api.NewHandler(store.Sources, store.Contents, registry, appCfg.KeywordsFile,
		stats.NewAggregator(store.Stats, appCfg.Location), configCache, scheduler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := keyword.Watch(gCtx, registry, appCfg.KeywordsFile); err != nil {
			slog.Warn("Keyword file watcher stopped", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// buildNotifier always logs notifications and additionally fans out to the
// webhook and Redis when configured.
func buildNotifier(ctx context.Context, appCfg *cfg.Cfg) (ingest.Notifier, func(), error) {
	notifiers := notify.Multi{notify.LogNotifier{}}
	closeFn := func() {}

	if appCfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(appCfg.WebhookURL, appCfg.UserAgent))
	}

	if appCfg.RedisAddr != "" {
		client, err := notify.NewRedisClient(ctx, appCfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { client.Close() }
		notifiers = append(notifiers, notify.NewRedisNotifier(client, appCfg.RedisChannel))
	}

	return notifiers, closeFn, nil
}
