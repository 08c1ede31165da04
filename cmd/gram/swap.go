package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
	"github.com/untoldecay/gram/internal/ui"
)

var swapCmd = &cobra.Command{
	Use:     "swap <id> [text]",
	GroupID: "nodes",
	Short:   "Replace a node's contents, moving descendants it no longer reaches to the trash",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		line := strings.Join(args[1:], " ")
		if line == "" {
			return fmt.Errorf("swap requires replacement text")
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && ui.IsTerminal() {
			confirmed, err := ui.ConfirmSwap(id)
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("canceled")
				return nil
			}
		}

		n, err := graph.TextLine(line)
		if err != nil {
			return err
		}
		tx := cmdCtx.DB.Begin()
		if err := tx.Swap(id, n); err != nil {
			tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

func init() {
	swapCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(swapCmd)
}
