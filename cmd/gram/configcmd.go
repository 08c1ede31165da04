package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "ops",
	Short:   "Inspect and move broadcast configuration between machines",
}

var configExportProfileCmd = &cobra.Command{
	Use:   "export-profile",
	Short: "Write the broadcast relay settings as a portable TOML snippet",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		data, err := config.ExportProfileTOML(config.CurrentProfile())
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

var configImportProfileCmd = &cobra.Command{
	Use:   "import-profile <file>",
	Short: "Load a profile written by export-profile into this run's config and print it (the config file is not changed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		p, err := config.ImportProfileTOML(data)
		if err != nil {
			return err
		}
		fmt.Printf("relay: %s\npoll-interval: %s\n", p.BroadcastRelay, p.BroadcastPollInterval)
		return nil
	},
}

func init() {
	configExportProfileCmd.Flags().String("out", "-", "output file (default: stdout)")
	configCmd.AddCommand(configExportProfileCmd, configImportProfileCmd)
	rootCmd.AddCommand(configCmd)
}
