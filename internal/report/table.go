package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

const (
	maxLabelWidth = 48
	valueWidth    = 16
)

// formatValue prints whole numbers without decimals and cuts everything
// else to two
func formatValue(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

// fit pads or cuts s to exactly width runes
func fit(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n > width {
		r := []rune(s)
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-n)
}

// WriteTable prints report rows as a fixed-width table
func WriteTable(w io.Writer, prop Property, rows []Row) error {
	width := len("Group")
	for _, row := range rows {
		width = max(width, utf8.RuneCountInString(row.Label))
	}
	width = min(width, maxLabelWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %*s  %*s  %*s\n", fit("Group", width),
		valueWidth, prop.String()+" from", valueWidth, "to", valueWidth, "delta")
	b.WriteString(strings.Repeat("-", width+3*(valueWidth+2)) + "\n")
	for _, row := range rows {
		delta := formatValue(row.Delta)
		if row.Delta > 0 {
			delta = "+" + delta
		}
		fmt.Fprintf(&b, "%s  %*s  %*s  %*s\n", fit(row.Label, width),
			valueWidth, formatValue(row.From), valueWidth, formatValue(row.To), valueWidth, delta)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteLog prints change-log entries, one per line
func WriteLog(w io.Writer, entries []LogEntry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %-9s  %6d  %s\n",
			e.Time.Format("2006-01-02 15:04:05"), e.Metric, e.Value, e.Title)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
