// Package util provides shared helpers for the CLI and its services.
package util

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Mark is the symbol in front of a progress line.
type Mark int

const (
	MarkNone Mark = iota
	MarkStep
	MarkDone
	MarkWarn
)

var markStyles = map[Mark]struct {
	symbol string
	style  lipgloss.Style
}{
	MarkStep: {"→", lipgloss.NewStyle().Foreground(lipgloss.Color("12"))},
	MarkDone: {"✓", lipgloss.NewStyle().Foreground(lipgloss.Color("10"))},
	MarkWarn: {"!", lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)},
}

// Report writes a progress line to w. A nil w means quiet mode. The mark is
// colored only when w is a terminal, so piped output stays plain.
func Report(w io.Writer, mark Mark, format string, args ...any) {
	if w == nil {
		return
	}
	if m, ok := markStyles[mark]; ok {
		symbol := m.symbol
		if IsTerminal(w) {
			symbol = m.style.Render(symbol)
		}
		_, _ = io.WriteString(w, symbol+" ")
	}
	_, _ = fmt.Fprintf(w, format, args...)
}

// Reporter binds Report to one mark.
func Reporter(mark Mark) func(w io.Writer, format string, args ...any) {
	return func(w io.Writer, format string, args ...any) {
		Report(w, mark, format, args...)
	}
}
