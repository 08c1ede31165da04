// Command gram is the CLI front end for the personal knowledge graph
// engine: a thin Cobra tree over internal/db, one file per subcommand
// plus a shared rootCmd.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gram:", err)
		os.Exit(1)
	}
}
