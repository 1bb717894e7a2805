package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listTablesCmd = &cobra.Command{
	Use:   "list-tables <database-name>",
	Short: "List a database's registered tables and their index state",
	Args:  cobra.ExactArgs(1),
	RunE:  runListTables,
}

func init() {
	rootCmd.AddCommand(listTablesCmd)
}

func runListTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	scope := args[0]

	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tables, err := catalog.GetRegisteredTables(ctx, scope)
	if err != nil {
		return err
	}

	if len(tables) == 0 {
		fmt.Printf("No tables registered for database %q.\n", scope)

		return nil
	}

	indexed, err := store.ListTables(ctx, scope)
	if err != nil {
		return err
	}

	indexedSet := make(map[string]bool, len(indexed))
	for _, name := range indexed {
		indexedSet[name] = true
	}

	for _, table := range tables {
		state := "indexed"
		if !indexedSet[table.TableName] {
			state = "NOT INDEXED (run rebuild-index)"
		}

		if table.Summary != "" {
			fmt.Printf("%s - %s [%s]\n", table.TableName, table.Summary, state)
		} else {
			fmt.Printf("%s [%s]\n", table.TableName, state)
		}
	}

	return nil
}
