package ui

import "github.com/charmbracelet/lipgloss"

// Palette shared by result tables and preview rendering.
var (
	ColorAccent = lipgloss.Color("12")
	ColorWarn   = lipgloss.Color("11")
	ColorPass   = lipgloss.Color("10")
	ColorMuted  = lipgloss.Color("8")
)

var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorAccent).
				Align(lipgloss.Center)

	TableBorderStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	PreviewTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)
