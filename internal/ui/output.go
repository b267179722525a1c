package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	labelStyle   = lipgloss.NewStyle().Foreground(ColorInfo)
)

// Success writes a green check line.
func Success(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", successStyle.Render(SymbolSuccess), fmt.Sprintf(format, args...))
}

// Warning writes a yellow warning line.
func Warning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", warningStyle.Render(SymbolWarning), fmt.Sprintf(format, args...))
}

// Muted renders s in the secondary text color.
func Muted(s string) string {
	return mutedStyle.Render(s)
}

// KeyValue renders an aligned "key  value" row.
func KeyValue(key string, width int, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-*s", width, key)) + " " + value
}

// RenderError styles an error message. The first line (the "✗ what went
// wrong" headline of structured errors) is red; the rest is left as is.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimRight(err.Error(), "\n")
	head, rest, found := strings.Cut(msg, "\n")
	if !strings.HasPrefix(head, SymbolFail) {
		head = SymbolFail + " " + head
	}
	out := errorStyle.Render(head)
	if found {
		out += "\n" + rest
	}
	return out + "\n"
}
