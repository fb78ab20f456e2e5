package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd builds the command tree. Each call returns independent
// commands with their own flag state.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "fling",
		Short:   "A small HTTP client for the terminal",
		Version: version,
		Long: `Fling sends HTTP requests with JSON, form or multipart bodies and prints
the response. Error statuses are shown, not treated as failures; only
connection problems, failed extractions and schema mismatches exit non-zero.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newGetCmd(),
		newHeadCmd(),
		newPostCmd(),
		newPutCmd(),
		newPatchCmd(),
		newDeleteCmd(),
	)

	return rootCmd
}

// Execute runs the CLI with os.Args and prints any error to stderr.
// This is called by main.main().
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
