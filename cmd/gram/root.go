package main

import (
	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "gram",
	Short: "A personal knowledge graph engine",
	Long: `gram stores notes as a graph of Text/List/Styled nodes over a
log-structured key-value store, with an n-gram similarity index for
overlap-based search and a broadcast bridge for sharing subtrees between
instances.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return openContext(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeContext()
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "path to the KV log file (default: .gram/log)")
	rootCmd.PersistentFlags().String("actor", "", "identity recorded in audit entries (default: git user.name, else hostname)")
	rootCmd.PersistentFlags().Bool("json", false, "emit machine-readable JSON output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "nodes", Title: "Node commands:"},
		&cobra.Group{ID: "ops", Title: "Operational commands:"},
	)
}

// Execute runs the command tree. Exported so main.go can drive os.Exit.
func Execute() error {
	if err := config.Initialize(); err != nil {
		return err
	}
	return rootCmd.Execute()
}
