package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metalagman/entrybrain/internal/worker"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "analyze <entry-id>...",
		Short:        "Analyze entries synchronously",
		Long:         "Run the validation pipeline for each entry id with the worker retry policy and print the outcome.",
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return fmt.Errorf("parse entry id: %w", err)
			}
			store, closeFn, err := openStore(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer closeFn()

			an, err := newAnalyzer(cmd.Context(), cfg, store, nil)
			if err != nil {
				return err
			}
			pool := worker.New(an, cfg.Worker)
			for _, id := range ids {
				status, err := pool.Process(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), status)
			}
			return nil
		},
	}
}
