package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragsql/ragsql/internal/types"
)

var (
	registerDBHost     string
	registerDBPort     int
	registerDBUsername string
	registerDBPassword string
)

var registerDBCmd = &cobra.Command{
	Use:   "register-db <name>",
	Short: "Register a PostgreSQL database",
	Long: `Register a PostgreSQL database under a logical name. The password is
stored as a bcrypt hash; every later command that touches the database
asks for the password again and verifies it against the hash.

Examples:
  ragsql register-db cities --host db.internal --port 5432 --username app --password s3cret`,
	Args: cobra.ExactArgs(1),
	RunE: runRegisterDB,
}

func init() {
	registerDBCmd.Flags().StringVar(&registerDBHost, "host", "localhost", "Database host")
	registerDBCmd.Flags().IntVar(&registerDBPort, "port", 5432, "Database port")
	registerDBCmd.Flags().StringVar(&registerDBUsername, "username", "", "Database username")
	registerDBCmd.Flags().StringVar(&registerDBPassword, "password", "", "Database password")

	_ = registerDBCmd.MarkFlagRequired("username")
	_ = registerDBCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(registerDBCmd)
}

func runRegisterDB(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	catalog, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()

	conn := types.DatabaseConnection{
		Host:     registerDBHost,
		Port:     registerDBPort,
		Username: registerDBUsername,
		Password: registerDBPassword,
		Name:     args[0],
	}

	if err := catalog.RegisterDatabase(ctx, conn); err != nil {
		return err
	}

	fmt.Printf("Registered database %q (%s:%d)\n", conn.Name, conn.Host, conn.Port)

	return nil
}
