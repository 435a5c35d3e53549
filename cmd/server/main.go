package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gemstudio/gem/editor-go/internal/auth"
	"github.com/gemstudio/gem/editor-go/internal/collab"
	"github.com/gemstudio/gem/editor-go/internal/config"
	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/observability"
	"github.com/gemstudio/gem/editor-go/internal/server"
	"github.com/gemstudio/gem/editor-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log, "gem-server")
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	patches := store.New(pool, logger)
	if err := patches.Ping(ctx); err != nil {
		return err
	}
	if err := patches.Migrate(ctx); err != nil {
		return err
	}

	hub := collab.NewHub(collab.DirLoader(cfg.MockupDir, editor.Options{
		Logger:          logger,
		HistoryDebounce: cfg.HistoryDebounce,
		HistoryLimit:    cfg.HistoryLimit,
	}), collab.HubOptions{
		Logger:    logger,
		RateLimit: cfg.ClientRateLimit,
		RateBurst: cfg.ClientRateBurst,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.New(hub, auth.NewService(cfg.JWTSecret, 0), patches, cfg.Origins(), logger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("mockups", cfg.MockupDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
