package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dropTableDB string

var dropTableCmd = &cobra.Command{
	Use:   "drop-table <table-name>",
	Short: "Remove a table from a database's registered set",
	Args:  cobra.ExactArgs(1),
	RunE:  runDropTable,
}

func init() {
	dropTableCmd.Flags().StringVar(&dropTableDB, "db", "", "Registered database name")

	_ = dropTableCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(dropTableCmd)
}

func runDropTable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	registrar, cleanup, err := newRegistrar(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := registrar.DropTable(ctx, dropTableDB, args[0]); err != nil {
		return err
	}

	fmt.Printf("Dropped table %q from database %q\n", args[0], dropTableDB)

	return nil
}
