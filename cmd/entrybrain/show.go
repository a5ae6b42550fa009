package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metalagman/entrybrain/internal/report"
)

func showCmd() *cobra.Command {
	var raw bool
	var width int
	cmd := &cobra.Command{
		Use:          "show <entry-id>",
		Short:        "Show the stored analysis of an entry",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
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

			e, err := store.Entry(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			md, err := report.Markdown(e)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				fmt.Fprint(out, md)
				return nil
			}
			rendered, err := report.Render(md, width)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.Badge(e))
			fmt.Fprint(out, rendered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without terminal styling")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	return cmd
}
