package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
	"github.com/untoldecay/gram/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add [text]",
	GroupID: "nodes",
	Short:   "Add a node and attach it under the root",
	Long: `Add a Text node and push it as the last child of the root page.

With no arguments and an interactive terminal, prompts for the node kind.

Examples:
  gram add "buy milk"
  gram add --under <id> "a nested line"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		under, _ := cmd.Flags().GetString("under")
		parent := graph.Root
		if under != "" {
			id, err := graph.ParseId(under)
			if err != nil {
				return fmt.Errorf("invalid --under id: %w", err)
			}
			parent = id
		}

		line := strings.Join(args, " ")
		if line == "" && ui.IsTerminal() {
			variant, err := ui.PickNodeVariant()
			if err != nil {
				return err
			}
			line = variant.Text
		}
		if line == "" {
			return fmt.Errorf("add requires text, e.g. gram add \"buy milk\"")
		}

		tx := cmdCtx.DB.Begin()
		n, err := graph.TextLine(line)
		if err != nil {
			tx.Abort()
			return err
		}
		id, err := tx.Add(n)
		if err != nil {
			tx.Abort()
			return err
		}
		if err := tx.Push(parent, graph.Lazy(id)); err != nil {
			tx.Abort()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		if cmdCtx.JSON {
			fmt.Printf("{\"id\":%q}\n", id.String())
		} else {
			fmt.Println(id.String())
		}
		return nil
	},
}

func init() {
	addCmd.Flags().String("under", "", "parent id to push the new node under (default: root)")
	rootCmd.AddCommand(addCmd)
}
