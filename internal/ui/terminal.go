// Package ui renders CLI output and interactive prompts for the gram
// command tree: TTY/color detection, a huh-based form layer, and
// lipgloss/glamour rendering of results.
package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether stdout is connected to a TTY.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor follows the usual conventions: NO_COLOR disables, GRAM_NO_COLOR
// disables, otherwise color follows TTY detection.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("GRAM_NO_COLOR") != "" {
		return false
	}
	return IsTerminal()
}

// GetWidth returns the terminal width, or 80 if it cannot be determined.
func GetWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
