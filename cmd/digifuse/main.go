package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mtzanidakis/digifuse/internal/catalog"
	"github.com/mtzanidakis/digifuse/internal/config"
	"github.com/mtzanidakis/digifuse/internal/fusion"
	"github.com/mtzanidakis/digifuse/internal/imagegen"
	"github.com/mtzanidakis/digifuse/internal/staging"
	"github.com/mtzanidakis/digifuse/internal/textgen"
)

var version = "dev"

var debug bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("digifuse failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "digifuse",
		Short:         "Invent Digimon fusions with generative text and image models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newFuseCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "digifuse %s\n", version)
		},
	}
}

// pipeline holds the components shared by serve and fuse.
type pipeline struct {
	catalog *catalog.Client
	fusion  *fusion.Orchestrator
	staging *staging.Root
}

func newPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	var model textgen.Model
	gm, err := textgen.NewGeminiModel(ctx, cfg.TextGen.APIKey, cfg.TextGen.Model, "")
	switch {
	case errors.Is(err, textgen.ErrMissingCredential):
		logger.Warn("GEMINI_API_KEY not set, fusions will use fallback values")
	case err != nil:
		return nil, fmt.Errorf("init text generation: %w", err)
	default:
		model = gm
	}
	if cfg.ImageGen.APIKey == "" {
		logger.Warn("STABILITY_API_KEY not set, fusions will use placeholder images")
	}

	text := textgen.New(model, cfg.TextGen.Timeout, logger)
	image := imagegen.New(imagegen.Options{
		APIKey:       cfg.ImageGen.APIKey,
		KeyPrefix:    cfg.ImageGen.KeyPrefix,
		Endpoint:     cfg.ImageGen.Endpoint,
		OutputFormat: cfg.ImageGen.OutputFormat,
		Timeout:      cfg.ImageGen.Timeout,
		MaxBytes:     cfg.ImageGen.MaxBytes,
	}, logger)
	root := staging.NewRoot(cfg.Staging.Dir)

	return &pipeline{
		catalog: catalog.New(cfg.Catalog.URL, cfg.Catalog.Timeout),
		fusion:  fusion.New(text, image, root, logger),
		staging: root,
	}, nil
}
