package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mtzanidakis/digifuse/internal/auth"
	"github.com/mtzanidakis/digifuse/internal/config"
	"github.com/mtzanidakis/digifuse/internal/janitor"
	"github.com/mtzanidakis/digifuse/internal/natsbus"
	"github.com/mtzanidakis/digifuse/internal/store"
	"github.com/mtzanidakis/digifuse/internal/telegram"
	"github.com/mtzanidakis/digifuse/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, staging janitor and Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, slog.Default())
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting digifuse", "version", version)

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	logger.Info("store initialized", "path", cfg.Store.Path)

	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	logger.Info("nats started", "port", bus.Port())

	if err := os.MkdirAll(cfg.Staging.Dir, 0o700); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sweeper, err := janitor.New(p.staging, cfg.Staging, logger)
	if err != nil {
		return fmt.Errorf("init staging janitor: %w", err)
	}

	srv := web.NewServer(web.Options{
		Store:     db,
		Catalog:   p.catalog,
		Fusion:    p.fusion,
		Sessions:  auth.NewSessions(cfg.Auth.SessionTTL),
		Google:    auth.NewGoogleVerifier(cfg.Auth.GoogleClientID),
		Bus:       bus,
		Config:    cfg.Web,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
		Version:   version,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sweeper.Start(ctx)
		return nil
	})

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram, p.catalog, p.fusion, logger)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
		g.Go(func() error {
			return bot.Start(ctx)
		})
	} else {
		logger.Warn("telegram token not set, bot disabled")
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
