package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/types"
)

var (
	registerTableDB      string
	registerTableSummary string
	registerTableColumns string
)

var registerTableCmd = &cobra.Command{
	Use:   "register-table [table-name]",
	Short: "Register a table with a database's schema index",
	Long: `Register a table so questions can retrieve it.

Two registration shapes are supported. Naming the table registers it for
complete-mode retrieval: column detail is read live from the database at
question time, and --summary adds an optional description.

Passing --columns <file> instead registers from a JSON column catalog
(minimal mode): the file holds rows of
{"schema_name", "table_name", "column_name", "column_type"}, the rows are
rendered into CREATE TABLE text, captioned by the language model, and the
text itself becomes the retrieval document.

Examples:
  ragsql register-table city_stats --db cities --summary "Population per city"
  ragsql register-table --db cities --columns ./city_columns.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRegisterTable,
}

func init() {
	registerTableCmd.Flags().StringVar(&registerTableDB, "db", "", "Registered database name")
	registerTableCmd.Flags().StringVar(&registerTableSummary, "summary", "", "Optional table description")
	registerTableCmd.Flags().StringVar(&registerTableColumns, "columns", "", "JSON file of column rows (minimal mode)")

	_ = registerTableCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(registerTableCmd)
}

func runRegisterTable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if registerTableColumns == "" && len(args) == 0 {
		return errors.New(errors.ErrTypeValidation,
			"provide a table name, or --columns for minimal-mode registration")
	}

	minimal := registerTableColumns != ""

	registrar, cleanup, err := newRegistrar(ctx, cfg, minimal)
	if err != nil {
		return err
	}
	defer cleanup()

	if minimal {
		columns, err := readColumnSpecs(registerTableColumns)
		if err != nil {
			return err
		}

		if err := registrar.RegisterTableMinimal(ctx, registerTableDB, columns); err != nil {
			return err
		}

		fmt.Printf("Registered %d column rows for database %q\n", len(columns), registerTableDB)

		return nil
	}

	table := types.TableDescriptor{TableName: args[0], Summary: registerTableSummary}

	if err := registrar.RegisterTable(ctx, registerTableDB, table); err != nil {
		return err
	}

	fmt.Printf("Registered table %q for database %q\n", table.TableName, registerTableDB)

	return nil
}

func readColumnSpecs(path string) ([]types.ColumnSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeValidation,
			"failed to read column file %q", path)
	}

	var columns []types.ColumnSpec
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeValidation,
			"failed to parse column file %q", path)
	}

	return columns, nil
}
