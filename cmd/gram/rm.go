package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
)

var rmCmd = &cobra.Command{
	Use:     "rm <list-id> <index>",
	GroupID: "nodes",
	Short:   "Remove a child at a position from a List node",
	Long: `Remove drops the i-th child of a List node. A child that loses its
last parent this way is swept into the trash and can be brought back with
restore.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index: %w", err)
		}
		tx := cmdCtx.DB.Begin()
		if err := tx.Remove(id, i); err != nil {
			tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
