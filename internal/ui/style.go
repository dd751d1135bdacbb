// Package ui holds the colour helpers and plain-text tables used by the
// keywork CLI.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// Sprint color functions for building styled strings.
var (
	Bold       = color.New(color.Bold).SprintFunc()
	Dim        = color.New(color.Faint).SprintFunc()
	Cyan       = color.New(color.FgCyan).SprintFunc()
	Green      = color.New(color.FgGreen).SprintFunc()
	Red        = color.New(color.FgRed).SprintFunc()
	Yellow     = color.New(color.FgYellow).SprintFunc()
	Magenta    = color.New(color.FgMagenta).SprintFunc()
	BoldGreen  = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed    = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
)

// Style renders a cell value.
type Style func(a ...interface{}) string

// Plain leaves text untouched.
func Plain(a ...interface{}) string { return fmt.Sprint(a...) }

// GoalStatus picks the colour for a goal status. Unknown statuses are plain.
func GoalStatus(status string) Style {
	switch status {
	case "building":
		return Green
	case "planning":
		return Yellow
	case "paused", "created":
		return Dim
	case "gate_review":
		return Cyan
	case "promoting":
		return Magenta
	case "completed":
		return BoldGreen
	default:
		return Plain
	}
}

// Priority picks the colour for a goal or repo priority.
func Priority(priority string) Style {
	switch priority {
	case "urgent":
		return BoldRed
	case "high":
		return Yellow
	case "low":
		return Dim
	default:
		return Plain
	}
}

// AttentionIcon returns the marker shown before an attention item.
func AttentionIcon(kind string) string {
	switch kind {
	case "review":
		return Cyan("🔍")
	case "question":
		return Yellow("❓")
	case "paused":
		return Dim("⏸")
	default:
		return Dim("•")
	}
}

// Warnf prints a yellow warning line.
func Warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, BoldYellow("warning:"), fmt.Sprintf(format, args...))
}

// Successf prints a green confirmation line.
func Successf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Green("✓"), fmt.Sprintf(format, args...))
}

// Cell is one styled table value. Width is measured on Text.
type Cell struct {
	Text  string
	Style Style
}

// C is a shorthand for a styled cell.
func C(text string, style Style) Cell {
	if style == nil {
		style = Plain
	}
	return Cell{Text: text, Style: style}
}

// Table aligns rows of cells into columns, padding on the raw text so colour
// codes do not skew the layout.
type Table struct {
	header []string
	rows   [][]Cell
}

// NewTable starts a table with the given column headers.
func NewTable(header ...string) *Table {
	return &Table{header: header}
}

// Row appends one row.
func (t *Table) Row(cells ...Cell) {
	t.rows = append(t.rows, cells)
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table to w.
func (t *Table) Render(w io.Writer) {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := runewidth.StringWidth(c.Text); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	for i, h := range t.header {
		b.WriteString(Bold(h))
		b.WriteString(pad(h, widths[i], i == len(t.header)-1))
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	for _, row := range t.rows {
		b.Reset()
		for i, c := range row {
			style := c.Style
			if style == nil {
				style = Plain
			}
			b.WriteString(style(c.Text))
			b.WriteString(pad(c.Text, widths[i], i == len(row)-1))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func pad(text string, width int, last bool) string {
	if last {
		return ""
	}
	return strings.Repeat(" ", width-runewidth.StringWidth(text)+2)
}
