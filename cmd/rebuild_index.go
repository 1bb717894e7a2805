package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index <database-name>",
	Short: "Rebuild a database's schema index from the registration catalog",
	Long: `Rebuild the schema index for a database from its authoritative table
list. Use this after an index write failed during registration, or
whenever the index and the catalog have drifted apart.`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuildIndex,
}

func init() {
	rootCmd.AddCommand(rebuildIndexCmd)
}

func runRebuildIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	registrar, cleanup, err := newRegistrar(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := registrar.RebuildIndex(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("Rebuilt schema index for database %q\n", args[0])

	return nil
}
