package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragsql/ragsql/internal/config"
	"github.com/ragsql/ragsql/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ragsql",
	Short: "Ask natural-language questions against your PostgreSQL databases",
	Long: `ragsql registers PostgreSQL databases and their tables, indexes each
table's schema as an embedded document, and answers natural-language
questions by retrieving the relevant tables, generating SQL with a
language model, executing it, and synthesizing a readable answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		cfg.ExpandAllPaths()

		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}

		if err := logging.InitializeLogger(cfg.Logging); err != nil {
			logging.SetupFallbackLogger()
		}

		return nil
	},
}

func Execute() error {
	ctx := context.Background()

	return rootCmd.ExecuteContext(ctx)
}
