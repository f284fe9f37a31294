package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mtzanidakis/digifuse/internal/config"
	"github.com/mtzanidakis/digifuse/internal/domain"
)

func newFuseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "fuse <digimon> <digimon>",
		Short:   "Create one fusion and print it as JSON",
		Example: "  digifuse fuse Agumon Gabumon",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.EqualFold(args[0], args[1]) {
				return fmt.Errorf("pick two different digimon")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			p, err := newPipeline(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}

			a, b, err := p.catalog.FindPair(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("resolve digimon: %w", err)
			}

			result := p.fusion.Create(ctx, domain.FusionRequest{
				NameA:  a.Name,
				NameB:  b.Name,
				ImageA: a.Image,
				ImageB: b.Image,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
