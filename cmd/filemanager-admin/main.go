package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filemanager-admin",
		Short: "Administrative tasks for the exam file manager",
		Long: `Administrative tasks for the exam file manager.

Reads the same environment as the server (DATABASE_URL, STORAGE_DRIVER,
S3_*, GCS_*). Configuration can be loaded from a .env file in the
current directory.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewSchemaCommand())
	rootCmd.AddCommand(NewUsersCommand())
	rootCmd.AddCommand(NewRecordsCommand())
	rootCmd.AddCommand(NewReconcileCommand())

	return rootCmd
}
