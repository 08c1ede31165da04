package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/untoldecay/gram/internal/graph"
)

// RenderPreview turns a graph.Preview into Markdown, then through glamour for
// terminal display, the way a rendered preview(id) result would read in an
// interactive session (spec.md's preview operation has no rendering of its
// own; this is the CLI's presentation of it).
func RenderPreview(p graph.Preview, width int) (string, error) {
	switch p.Kind {
	case graph.PreviewEmpty:
		return PreviewTitleStyle.Render("(empty)"), nil
	case graph.PreviewCyclic:
		return PreviewTitleStyle.Render("(cyclic — preview unavailable)"), nil
	}

	md := markdownFor(p)
	if width <= 0 {
		width = GetWidth()
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

func markdownFor(p graph.Preview) string {
	line := p.Node.Line
	for _, s := range p.Span {
		switch s {
		case graph.Bold:
			line = "**" + line + "**"
		case graph.Italic:
			line = "_" + line + "_"
		case graph.Struck:
			line = "~~" + line + "~~"
		case graph.Mono:
			line = "`" + line + "`"
		case graph.Marked:
			line = "==" + line + "=="
		}
	}
	for i := len(p.Block) - 1; i >= 0; i-- {
		switch p.Block[i] {
		case graph.Heading:
			line = "## " + line
		case graph.ListStyle:
			line = "- " + line
		case graph.Quote:
			line = "> " + line
		case graph.Aside:
			line = "*(aside)* " + line
		}
	}
	return line
}
