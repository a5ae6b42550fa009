package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/metalagman/entrybrain/internal/config"
	"github.com/metalagman/entrybrain/internal/logging"
)

var (
	cfgFile string
	debug   bool
	cfg     config.Config
	rootCmd = &cobra.Command{
		Use:           "entrybrain",
		Short:         "entrybrain validates work log entries with a staged inference pipeline",
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", filepath.Join(".entrybrain", "config.json"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		loaded, err := config.Load(cfgFile, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Init(debug || cfg.Logging.Debug, cfg.Logging.JSON)
		return nil
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(showCmd())
	return rootCmd.Execute()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
}
