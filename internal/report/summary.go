package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/music-ledger/internal/store"
)

// RunSummary describes one update pass
type RunSummary struct {
	GeneratedAt time.Time
	Duration    time.Duration

	Source       string
	DatabasePath string
	EventLogPath string
	DryRun       bool

	Tracks            int
	MetaCreated       int
	MetaFieldsUpdated int
	PlayCountEvents   int
	RatingEvents      int

	// Row totals after the run, by table
	TableRows map[string]int64
	DBSize    int64

	Errors []string

	// Top movers over the summary window, if computed
	Movers      []Row
	MoversProp  Property
	MoversSince time.Time
}

// RowsChanged returns the total number of rows written by the run
func (s *RunSummary) RowsChanged() int {
	return s.MetaCreated + s.MetaFieldsUpdated + s.PlayCountEvents + s.RatingEvents
}

// WriteMarkdownReport writes the run summary as Markdown
func WriteMarkdownReport(summary *RunSummary, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Music Ledger - Update Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05")))

	if summary.Source != "" {
		md.WriteString(fmt.Sprintf("**Source:** `%s`\n\n", summary.Source))
	}
	if summary.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", summary.DatabasePath))
	}
	if summary.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", summary.EventLogPath))
	}
	if summary.DryRun {
		md.WriteString("> Dry run: nothing below was saved.\n\n")
	}

	md.WriteString("---\n\n")

	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Tracks Seen | %s |\n", humanize.Comma(int64(summary.Tracks))))
	md.WriteString(fmt.Sprintf("| Metadata Created | %d |\n", summary.MetaCreated))
	md.WriteString(fmt.Sprintf("| Metadata Fields Changed | %d |\n", summary.MetaFieldsUpdated))
	md.WriteString(fmt.Sprintf("| Play Count Events | %d |\n", summary.PlayCountEvents))
	md.WriteString(fmt.Sprintf("| Rating Events | %d |\n", summary.RatingEvents))
	if len(summary.Errors) > 0 {
		md.WriteString(fmt.Sprintf("| Errors | %d |\n", len(summary.Errors)))
	}
	if summary.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", summary.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	if len(summary.TableRows) > 0 || summary.DBSize > 0 {
		md.WriteString("## 🗄️ Store\n\n")
		md.WriteString("| Table | Rows |\n")
		md.WriteString("|-------|------|\n")
		for _, table := range store.Tables {
			if n, ok := summary.TableRows[table]; ok {
				md.WriteString(fmt.Sprintf("| %s | %s |\n", table, humanize.Comma(n)))
			}
		}
		if summary.DBSize > 0 {
			md.WriteString(fmt.Sprintf("| *File size* | %s |\n", humanize.Bytes(uint64(summary.DBSize))))
		}
		md.WriteString("\n")
	}

	if len(summary.Movers) > 0 {
		md.WriteString(fmt.Sprintf("## 📈 Top Movers (%s since %s)\n\n",
			summary.MoversProp, summary.MoversSince.Format(time.DateOnly)))
		md.WriteString("| Group | Delta |\n")
		md.WriteString("|-------|-------|\n")
		for _, row := range summary.Movers {
			md.WriteString(fmt.Sprintf("| %s | %s |\n", escapeCell(row.Label), formatValue(row.Delta)))
		}
		md.WriteString("\n")
	}

	if len(summary.Errors) > 0 {
		md.WriteString("## ⚠️ Errors\n\n")
		for _, e := range summary.Errors {
			md.WriteString(fmt.Sprintf("- %s\n", e))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by mledger*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// escapeCell keeps pipes in labels from breaking the table
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
