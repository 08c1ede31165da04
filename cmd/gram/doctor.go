package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: "ops",
	Short:   "Run health checks: trash size, orphan count, owned broadcast count",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx := cmdCtx.DB.Begin()
		defer tx.Abort()

		var trashed, nodes int
		for _, key := range tx.Snapshot.Keys() {
			id, ok := graph.DecodeNodeKey(key)
			if !ok {
				continue
			}
			nodes++
			if _, ok, err := tx.Store().GetNode(id); err == nil && !ok {
				trashed++
			}
		}

		orphans := 0
		descendants, err := tx.Queries().Descendants(graph.Root, false)
		if err != nil {
			return err
		}
		reachable := make(map[graph.Id]bool, len(descendants)+1)
		reachable[graph.Root] = true
		for _, d := range descendants {
			reachable[d] = true
		}
		for _, key := range tx.Snapshot.Keys() {
			id, ok := graph.DecodeNodeKey(key)
			if !ok {
				continue
			}
			if _, ok, err := tx.Store().GetNode(id); err == nil && ok && !reachable[id] {
				orphans++
			}
		}

		fmt.Printf("nodes: %d\n", nodes)
		fmt.Printf("trashed: %d\n", trashed)
		fmt.Printf("orphans (live, unreachable from root): %d\n", orphans)
		fmt.Printf("owned broadcasts: %d\n", len(tx.Store().ListOwnedBroadcastIds()))
		return nil
	},
}

var doctorVersionsCmd = &cobra.Command{
	Use:   "versions <id>",
	Short: "List every stored version of a node's key, including trashed ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		tx := cmdCtx.DB.Begin()
		defer tx.Abort()

		for _, v := range tx.Snapshot.Versions(graph.NodeKey(id)) {
			fmt.Printf("offset=%d removed=%t timestamp=%d\n", v.Offset, v.IsRemoved, v.Timestamp)
		}
		return nil
	},
}

func init() {
	doctorCmd.AddCommand(doctorVersionsCmd)
	rootCmd.AddCommand(doctorCmd)
}
