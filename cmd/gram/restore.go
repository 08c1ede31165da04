package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
)

var restoreCmd = &cobra.Command{
	Use:     "restore <id>",
	GroupID: "nodes",
	Short:   "Undo a removal, pulling a node back out of the trash",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		tx := cmdCtx.DB.Begin()
		if err := tx.Restore(id); err != nil {
			tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
