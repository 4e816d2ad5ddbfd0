package util

import (
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const defaultTerminalWidth = 100

// GetDisplayWidth calculates the display width of a string, accounting for wide runes
func GetDisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// PadRight pads text with spaces to width display columns, truncating with an
// ellipsis when it is wider.
func PadRight(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) > width {
		return runewidth.Truncate(text, width, "…")
	}
	return runewidth.FillRight(text, width)
}

// TerminalWidth returns stdout's width, or a default when stdout is not a terminal
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultTerminalWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultTerminalWidth
	}
	return width
}

// IsTerminal reports whether stdout is attached to a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// RenderTable lays rows out in columns sized to their widest cell. The last
// column absorbs whatever width remains up to maxWidth.
func RenderTable(headers []string, rows [][]string, maxWidth int) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	if maxWidth > 0 && len(widths) > 0 {
		used := 0
		for _, w := range widths[:len(widths)-1] {
			used += w + 2
		}
		if remaining := maxWidth - used; remaining > 8 && widths[len(widths)-1] > remaining {
			widths[len(widths)-1] = remaining
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = PadRight(cell, widths[i])
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}

	writeRow(headers)
	separators := make([]string, len(widths))
	for i, w := range widths {
		separators[i] = strings.Repeat("─", w)
	}
	writeRow(separators)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}
