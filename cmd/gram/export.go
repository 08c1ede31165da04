package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
)

var exportCmd = &cobra.Command{
	Use:     "export <id>",
	GroupID: "ops",
	Short:   "Write a detached KV image of everything reachable from id",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := graph.ParseId(args[0])
		if err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		out, _ := cmd.Flags().GetString("out")
		since, _ := cmd.Flags().GetInt64("since")

		tx := cmdCtx.DB.Begin()
		defer tx.Abort()

		var data []byte
		if since > 0 {
			data, err = tx.ExportSince(id, since)
		} else {
			data, err = tx.Export(id)
		}
		if err != nil {
			return err
		}

		if out == "" || out == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(out, data, 0o644)
	},
}

func init() {
	exportCmd.Flags().String("out", "-", "output file (default: stdout)")
	exportCmd.Flags().Int64("since", 0, "only export nodes modified after this timestamp")
	rootCmd.AddCommand(exportCmd)
}
