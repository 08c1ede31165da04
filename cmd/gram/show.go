package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
	"github.com/untoldecay/gram/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "nodes",
	Short:   "Render a node's preview",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		tx := cmdCtx.DB.Begin()
		defer tx.Abort()

		p, err := tx.Queries().BuildPreview(id)
		if err != nil {
			return err
		}
		out, err := ui.RenderPreview(p, 0)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
