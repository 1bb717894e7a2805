package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/ragsql/ragsql/internal/errors"
	"github.com/ragsql/ragsql/internal/retriever"
	"github.com/ragsql/ragsql/internal/target"
	"github.com/ragsql/ragsql/internal/workflow"
)

var (
	askDB       string
	askPassword string
	askTask     string
	askSQL      string
	askMode     string
	askShowRows bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a natural-language question against a registered database",
	Long: `Run a question through the full pipeline: retrieve the most relevant
registered tables, generate SQL, execute it against the live database,
and synthesize a natural-language answer.

The --task flag selects what to do instead of answering a question:
  text_to_sql   generate, execute and answer (default)
  optimize_sql  rewrite the SQL passed via --sql, with an explanation
  explain_sql   explain the SQL passed via --sql
  fix_sql       repair the SQL passed via --sql

Examples:
  ragsql ask "Which city has the highest population?" --db cities --password s3cret
  ragsql ask --task explain_sql --sql "SELECT COUNT(*) FROM city_stats" --db cities --password s3cret
  ragsql ask "top exporters per region" --db trade --password pw --mode minimal`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDB, "db", "", "Registered database name")
	askCmd.Flags().StringVar(&askPassword, "password", "", "Database password")
	askCmd.Flags().StringVar(&askTask, "task", "text_to_sql", "Task: text_to_sql, optimize_sql, explain_sql, fix_sql")
	askCmd.Flags().StringVar(&askSQL, "sql", "", "SQL statement for the rework tasks")
	askCmd.Flags().StringVar(&askMode, "mode", "complete", "Retrieval mode: complete or minimal")
	askCmd.Flags().BoolVar(&askShowRows, "rows", false, "Print the raw result rows")

	_ = askCmd.MarkFlagRequired("db")
	_ = askCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	question := ""
	if len(args) > 0 {
		question = strings.TrimSpace(args[0])
	}

	if askTask == "text_to_sql" && question == "" {
		return errors.New(errors.ErrTypeValidation, "a question is required").
			WithSuggestion(`ragsql ask "Which city has the highest population?" --db <name> --password <pw>`)
	}

	mode, err := retriever.ParseMode(askMode)
	if err != nil {
		return err
	}

	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	conn, err := catalog.GetDatabaseCredentials(ctx, askDB, askPassword)
	if err != nil {
		return err
	}

	executor, err := target.Connect(ctx, conn)
	if err != nil {
		return err
	}
	defer executor.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	engine := workflow.NewEngine(
		retriever.New(store, cfg.Index.TopK),
		gen,
		executor,
		workflow.WithMode(mode),
		workflow.WithInspector(executor),
		workflow.WithRunTimeout(cfg.Workflow.RunTimeoutDuration()),
	)

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	spin.Suffix = " Working..."
	spin.Start()

	result, err := engine.Run(ctx, conn.Scope(), workflow.Request{
		Task:     askTask,
		Question: question,
		SQL:      askSQL,
	})

	spin.Stop()

	if err != nil {
		return err
	}

	printResult(result)

	return nil
}

func printResult(result *workflow.FinalResult) {
	if len(result.TableNames) > 0 {
		fmt.Printf("Tables: %s\n", strings.Join(result.TableNames, ", "))
	}

	fmt.Printf("SQL: %s\n\n", result.SQLQuery)
	fmt.Println(result.Response)

	if askShowRows && len(result.Rows) > 0 {
		fmt.Println()

		for _, row := range result.Rows {
			fmt.Printf("%v\n", row)
		}
	}
}
