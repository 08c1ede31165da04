package ui

import (
	"github.com/charmbracelet/huh"

	"github.com/untoldecay/gram/internal/graph"
)

// NodeVariant is the answer to PickNodeVariant: Text, or List for either of
// the Chain and Page choices (the layout is not kept), for `gram add`
// called without flags.
type NodeVariant struct {
	Kind graph.Kind
	Text string
}

// PickNodeVariant runs an interactive form asking which node kind to add
// and, for Text, its content: a huh.Form whose answers populate plain
// local variables rather than being parsed back out of a struct.
func PickNodeVariant() (NodeVariant, error) {
	var kindChoice string
	var text string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Node kind").
				Description("What should this node be?").
				Options(
					huh.NewOption("Text", "text"),
					huh.NewOption("List (Chain)", "chain"),
					huh.NewOption("List (Page)", "page"),
				).
				Value(&kindChoice),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Text").
				Description("Line content (only used for a Text node)").
				Value(&text),
		).WithHideFunc(func() bool { return kindChoice != "text" }),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return NodeVariant{}, err
	}

	switch kindChoice {
	case "chain":
		return NodeVariant{Kind: graph.KindList}, nil
	case "page":
		return NodeVariant{Kind: graph.KindList}, nil
	default:
		return NodeVariant{Kind: graph.KindText, Text: text}, nil
	}
}

// ConfirmSwap asks the user to confirm replacing id's contents, defaulting
// to "no" since swap overwrites the node and trashes descendants it no
// longer reaches.
func ConfirmSwap(id graph.Id) (bool, error) {
	confirmed := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Swap " + id.String() + "?").
				Description("Descendants the new contents no longer reach move to the trash until compacted away.").
				Affirmative("Swap").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(huh.ThemeDracula()).Run()
	if err != nil {
		return false, err
	}
	return confirmed, nil
}
