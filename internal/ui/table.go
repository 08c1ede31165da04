package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/untoldecay/gram/internal/index"
)

// NewResultsTable builds a bordered table listing search(term) results.
func NewResultsTable(results []index.SearchResult) *table.Table {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(GetWidth()).
		Headers("Id", "Score", "Overlap")

	for _, r := range results {
		t.Row(r.Id.String(), fmt.Sprintf("%.2f", r.Score), fmt.Sprintf("%d/%d", r.Intersection, r.SourceSize))
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		if row == table.HeaderRow {
			return TableHeaderStyle
		}
		return lipgloss.NewStyle()
	})
	return t
}

// Profile reports the terminal's color capability, for callers deciding
// whether to degrade a table to plain text (e.g. when piping to a file).
func Profile() termenv.Profile {
	return termenv.ColorProfile()
}
