// Package ui renders aurora's terminal output: status lines, errors, metric
// bars and the live watch view.
//
// Colors are plain ANSI codes so they degrade cleanly on the small terminals
// the agent usually runs in. Call Setup once at startup; it turns colors off
// when stdout is not a terminal or NO_COLOR is set.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolFail    = "✗"
	SymbolWarning = "!"
	SymbolPending = "○"
	SymbolActive  = "●"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Setup picks the color profile for w: full ANSI on a terminal, none
// otherwise or when NO_COLOR is set.
func Setup(w io.Writer) {
	if os.Getenv("NO_COLOR") != "" {
		DisableColors()
		return
	}
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		lipgloss.SetColorProfile(termenv.NewOutput(f).ColorProfile())
		return
	}
	DisableColors()
}

// DisableColors switches all rendering to plain text.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
