package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "ops",
	Short:   "Search for nodes whose n-gram overlap with the query scores >= 0.3",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		tx := cmdCtx.DB.Begin()
		defer tx.Abort()

		results, err := tx.Search(term)
		if err != nil {
			return err
		}
		sort.Slice(results, func(i, j int) bool {
			if results[i].Intersection != results[j].Intersection {
				return results[i].Intersection > results[j].Intersection
			}
			if results[i].SourceSize != results[j].SourceSize {
				return results[i].SourceSize > results[j].SourceSize
			}
			return results[i].MatchSize > results[j].MatchSize
		})

		if cmdCtx.JSON {
			for _, r := range results {
				fmt.Printf("{\"id\":%q,\"score\":%.4f}\n", r.Id.String(), r.Score)
			}
			return nil
		}
		if len(results) == 0 {
			fmt.Println("no matches")
			return nil
		}
		t := ui.NewResultsTable(results)
		fmt.Println(t.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
