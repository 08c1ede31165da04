package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/graph"
)

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "ops",
	Short:   "Graft a detached KV image into this database under a namespace",
	Long: `Import reads a detached image (see export) and writes every id it
contains XORed into namespace, so it never collides with this instance's
own ids. Omit --namespace (or pass the all-zero 32-hex-digit id) to
import without remapping.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		namespace := graph.Root
		if ns, _ := cmd.Flags().GetString("namespace"); ns != "" {
			namespace, err = graph.ParseId(ns)
			if err != nil {
				return fmt.Errorf("invalid --namespace: %w", err)
			}
		}

		tx := cmdCtx.DB.Begin()
		if err := tx.Import(data, namespace); err != nil {
			tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

func init() {
	importCmd.Flags().String("namespace", "", "id to XOR every imported id with (default: no remapping)")
	rootCmd.AddCommand(importCmd)
}
