package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "contactctl",
	Short: "contactctl - operate the contact intake store",
	Long: `contactctl prepares and checks the store behind the contact intake API.
Flags default to the CONTACT_* environment the API itself reads.`,
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the contact store schema",
	Long: `Create or update the schema of the selected store.

Example:
  contactctl migrate --kind postgres --database-url postgres://...
  contactctl migrate --kind dynamodb --dynamo-endpoint http://localhost:8000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
		defer cancel()

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		s := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" Migrating %s store...", flags.kind)
		s.Start()
		err = backend.Migrate(ctx)
		s.Stop()

		if err != nil {
			return fmt.Errorf("migrating %s store: %w", flags.kind, err)
		}

		fmt.Printf("%s store is up to date\n", flags.kind)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the contact store is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
		defer cancel()

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		s := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" Checking %s store...", flags.kind)
		s.Start()
		err = backend.StatusCheck(ctx)
		s.Stop()

		if err != nil {
			return fmt.Errorf("%s store unreachable: %w", flags.kind, err)
		}

		fmt.Printf("%s store is reachable\n", flags.kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	_ = godotenv.Load()
	bindFlags(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
