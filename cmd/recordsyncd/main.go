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

	"github.com/formulahunter/recordsync-go/internal/cache/sqlitekv"
	"github.com/formulahunter/recordsync-go/internal/noterecord"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "recordsyncd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to recordsyncd config file (TOML)")
	flag.Parse()

	cfg, err := loadDaemonConfig(*configPath)
	if err != nil {
		return err
	}

	level := &slog.LevelVar{}
	level.Set(logLevel(cfg.LogLevel))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := sqlitekv.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer kv.Close()

	registry, err := noterecord.Registry()
	if err != nil {
		return fmt.Errorf("building registry: %w", err)
	}

	store := recordstore.NewStore(registry)

	if err := loadStore(ctx, kv, store); err != nil {
		return err
	}

	watchConfig(*configPath, level, logger)

	srv := newServer(store, kv, logger)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: newRouter(srv),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("recordsyncd listening", "addr", cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", "error", err)
		}

		srv.mu.Lock()
		err := persistStore(context.Background(), kv, store)
		srv.mu.Unlock()

		return err

	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}

		return nil
	}
}
