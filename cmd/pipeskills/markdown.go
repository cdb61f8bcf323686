package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultRenderWidth = 80

// terminalWidth returns the width of stdout, or defaultRenderWidth when
// stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultRenderWidth
	}
	if w, _, err := term.GetSize(fd); err == nil && w >= 40 {
		return w
	}
	return defaultRenderWidth
}

// renderMarkdown styles md for the terminal. The source is returned unchanged
// when rendering fails.
func renderMarkdown(md string, width int) string {
	if width < 40 {
		width = defaultRenderWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
