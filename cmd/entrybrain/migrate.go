package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metalagman/entrybrain/internal/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply database migrations",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn, err := openStore(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer closeFn()

			v, err := db.Version(cmd.Context(), store.DB())
			if err != nil {
				return err
			}
			fmt.Printf("%s database at migration version %d\n", cfg.Database.Driver, v)
			return nil
		},
	}
}
