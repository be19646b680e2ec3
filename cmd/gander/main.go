// File path: cmd/gander/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/geekygoose/gander/internal/api"
	"github.com/geekygoose/gander/internal/common"
	"github.com/geekygoose/gander/internal/config"
	"github.com/geekygoose/gander/internal/scheduler"
	"github.com/geekygoose/gander/internal/sqlite"
	"github.com/geekygoose/gander/internal/storage"
	"github.com/geekygoose/gander/internal/tasks"
)

func main() {
	logger := common.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logger.Warn("gander: .env file not loaded", "error", err)
	} else {
		logger.Info("gander: environment loaded from .env")
	}

	addr := flag.String("addr", ":8080", "listen address")
	catalogPath := flag.String("catalog", "", "path to the SQLite catalog database")
	storagePath := flag.String("storage", "", "path to the evidence blob store")
	workers := flag.Int("workers", 2, "background task worker count")
	queueSize := flag.Int("queue", 64, "background task queue size")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		logger.Error("gander: configuration load failed", "error", err)
		fmt.Println("configuration error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*catalogPath); trimmed != "" {
		settings.CatalogPath = trimmed
	}
	if trimmed := strings.TrimSpace(*storagePath); trimmed != "" {
		settings.StoragePath = trimmed
	}

	logger.Info("gander: startup initiated", "addr", *addr, "catalog", settings.CatalogPath, "storage", settings.StoragePath)

	catalog, err := sqlite.Open(settings.CatalogPath)
	if err != nil {
		logger.Error("gander: catalog initialization failed", "error", err)
		fmt.Println("catalog error:", err)
		os.Exit(1)
	}
	defer catalog.Close()

	// Persisted settings overlay the env-derived baseline.
	settings, err = catalog.LoadSettings(ctx, settings)
	if err != nil {
		logger.Error("gander: stored settings load failed", "error", err)
		fmt.Println("settings error:", err)
		os.Exit(1)
	}
	runtime := config.NewRuntime(settings)

	blobs, err := storage.New(settings.StoragePath)
	if err != nil {
		logger.Error("gander: blob store initialization failed", "error", err)
		fmt.Println("storage error:", err)
		os.Exit(1)
	}

	dispatcher := tasks.NewDispatcher(*workers, *queueSize, runtime)

	server, err := api.NewServer(catalog, blobs, runtime, dispatcher, nil)
	if err != nil {
		logger.Error("gander: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	sweeper := scheduler.New(catalog, blobs, server, runtime)
	go sweeper.Run(ctx)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	reachable := *addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("gander: server listening", "addr", *addr, "health", fmt.Sprintf("http://%s/healthz", reachable))
	fmt.Printf("Serving on %s\n", *addr)

	select {
	case <-ctx.Done():
		logger.Info("gander: shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gander: server stopped", "error", err)
			fmt.Println("server stopped:", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gander: http shutdown incomplete", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gander: task drain incomplete", "error", err)
	}
	logger.Info("gander: shutdown complete")
}
