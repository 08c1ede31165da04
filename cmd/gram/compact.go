package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:     "compact",
	GroupID: "ops",
	Short:   "Rewrite the log to drop trashed versions (empties the trash)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cmdCtx.DB.Engine.Merge(); err != nil {
			return err
		}
		fmt.Println("compacted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compactCmd)
}
