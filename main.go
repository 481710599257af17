// Package main runs the eHaliSaha owner reservation-ledger notifier: a small
// service that polls the reservation backend, tracks how many reservations an
// owner has not yet acknowledged, and serves the badge state over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	gcs "cloud.google.com/go/storage"

	"ehalisaha-notifier/badge"
	"ehalisaha-notifier/client"
	"ehalisaha-notifier/pager"
	"ehalisaha-notifier/scan"
	"ehalisaha-notifier/seen"
	"ehalisaha-notifier/server"
	"ehalisaha-notifier/storage"
)

func main() {
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		logger.Error("BACKEND_URL environment variable required (e.g., https://ehalisaha.example.com)")
		os.Exit(1)
	}

	bucket := os.Getenv("STORAGE_BUCKET")
	localStorage := os.Getenv("LOCAL_STORAGE")

	// Default to local development mode if no bucket specified
	if bucket == "" && localStorage == "" {
		localStorage = "./data"
		logger.Info("No STORAGE_BUCKET set, defaulting to local development mode", "storage_path", localStorage)
	}

	var gcsClient *gcs.Client
	if localStorage != "" {
		if err := os.MkdirAll(localStorage, 0o755); err != nil {
			logger.Error("Failed to create local storage directory", "error", err)
			os.Exit(1)
		}
	} else {
		var err error
		gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			logger.Error("Failed to initialize Storage client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := gcsClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	backend := client.New(httpClient, backendURL, os.Getenv("BACKEND_USER"), os.Getenv("BACKEND_PASS"), logger)

	kv := storage.New(gcsClient, bucket, localStorage, logger)
	watermarks := seen.New(kv, logger)
	scanner := scan.New(backend, logger)
	cache := scan.NewCache(kv, logger)

	var renderer badge.Renderer
	if webhookURL := os.Getenv("BADGE_WEBHOOK_URL"); webhookURL != "" {
		renderer = badge.NewWebhookRenderer(httpClient, webhookURL, logger)
	} else {
		logger.Info("No BADGE_WEBHOOK_URL set, logging badge state")
		renderer = badge.NewLogRenderer(logger)
	}

	b := badge.New(&badge.Config{
		Scanner:    scanner,
		Watermarks: watermarks,
		Cache:      cache,
		Facilities: backend,
		Renderer:   renderer,
		Logger:     logger,
		Interval:   envDuration(logger, "POLL_INTERVAL"),
		WindowDays: envInt(logger, "SCAN_DAYS"),
	})
	go b.Run(ctx)

	srv := server.New(&server.Config{
		Poller:  b,
		Hints:   cache,
		Keys:    kv,
		Ledgers: pager.NewService(backend, watermarks, cache, logger),
		Logger:  logger,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := srv.ListenAndServe(port); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func envDuration(logger *slog.Logger, name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("Ignoring invalid duration", "name", name, "value", v, "error", err)
		return 0
	}
	return d
}

func envInt(logger *slog.Logger, name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("Ignoring invalid integer", "name", name, "value", v, "error", err)
		return 0
	}
	return n
}
