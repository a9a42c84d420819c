package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stormydragon/twitfix/internal/api"
	"github.com/stormydragon/twitfix/internal/api/handler"
	"github.com/stormydragon/twitfix/internal/cache"
	"github.com/stormydragon/twitfix/internal/classifier"
	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/downloader"
	"github.com/stormydragon/twitfix/internal/render"
	"github.com/stormydragon/twitfix/internal/resolver"
	"github.com/stormydragon/twitfix/internal/stats"
	"github.com/stormydragon/twitfix/internal/storage"
	"github.com/stormydragon/twitfix/pkg/syndication"
	"github.com/stormydragon/twitfix/pkg/twitter"
)

// platformBase prefixes bare handle/status paths when synthesizing
// canonical post URLs.
const platformBase = "https://twitter.com/"

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("twitfix %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting twitfix",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Link cache
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	linkCache, err := cache.New(startCtx, cfg.Cache, logger)
	cancelStart()
	if err != nil {
		logger.Error("failed to open link cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}

	// Media store
	dl := downloader.NewHTTPDownloader(cfg.Download)
	store, err := storage.New(cfg.Storage, dl, logger)
	if err != nil {
		logger.Error("failed to open media store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	// Upstream resolution
	apiClient := twitter.NewClient(twitter.Credentials{
		APIKey:    cfg.Twitter.APIKey,
		APISecret: cfg.Twitter.APISecret,
	})
	extractor := syndication.NewClient(cfg.Download.UserAgent)
	res := resolver.New(cfg.Resolve.Method, apiClient, extractor, logger)

	// Presentation
	renderer, err := render.New(cfg.App.Name, cfg.App.BaseURL)
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	recorder := stats.NewPrometheusRecorder(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Handlers and router
	cl := classifier.New(platformBase, cfg.Embed.UserAgents)
	postHandler := handler.NewPostHandler(cl, res, linkCache, store, renderer, recorder, cfg.App, logger)
	listHandler := handler.NewListHandler(linkCache, recorder, logger)
	healthHandler := handler.NewHealthHandler()
	router := api.NewRouter(postHandler, listHandler, healthHandler, metricsHandler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := linkCache.Close(ctx); err != nil {
		logger.Error("cache shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
