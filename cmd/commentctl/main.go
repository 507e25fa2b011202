package main

import (
	"fmt"
	"os"

	"github.com/benvon/comment-pulse/cmd/commentctl/commands"
	"github.com/spf13/cobra"
)

func main() {
	opts := &commands.Options{}

	var rootCmd = &cobra.Command{
		Use:           "commentctl",
		Short:         "Operator tool for Comment Pulse",
		Long:          "CLI tool for analyzing comment screenshots locally, inspecting stored results and managing the database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.AddFlags(rootCmd)

	rootCmd.AddCommand(commands.NewAnalyzeCmd(opts))
	rootCmd.AddCommand(commands.NewStatsCmd(opts))
	rootCmd.AddCommand(commands.NewExportCmd(opts))
	rootCmd.AddCommand(commands.NewMigrateCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
