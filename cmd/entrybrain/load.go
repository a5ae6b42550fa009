package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "load <fixtures.yaml>",
		Short:        "Load users, topics, entries and admin corrections from a YAML file",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open fixtures: %w", err)
			}
			defer func() { _ = f.Close() }()

			store, closeFn, err := openStore(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := loadFixtures(cmd.Context(), store, f)
			if err != nil {
				return err
			}
			log.Info().
				Int("users", stats.Users).
				Int("topics", stats.Topics).
				Int("entries", len(stats.Entries)).
				Int("wisdom", stats.Wisdom).
				Msg("fixtures loaded")
			for _, id := range stats.Entries {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
