package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and the history database",
	Long: `Run diagnostic checks to ensure mledger can operate correctly.

This command checks:
- Optional tools (ffprobe for bit rate, sample rate and duration)
- SQLite version
- Database accessibility, integrity, schema version and row counts
- Library directory readability
- Disk space next to the database

Use this command to troubleshoot issues before running an update.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== mledger doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{
		checkFFprobe(),
		checkSQLite(),
	}

	dbPath := viper.GetString("db")
	results = append(results, checkDatabase(dbPath))

	if libPath := viper.GetString("library"); libPath != "" {
		results = append(results, checkLibraryDirectory(libPath))
	}

	if dbPath != "" {
		results = append(results, checkDiskSpace(filepath.Dir(dbPath), "database"))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running mledger.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed!")
	}

	return nil
}

// checkFFprobe looks for ffprobe, which is optional
func checkFFprobe() checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe", "-version")
	output, err := cmd.CombinedOutput()

	if err != nil {
		return checkResult{
			name:    "ffprobe (optional)",
			warning: true,
			message: "not found (BitRate, SampleRate and TotalTime stay empty for directory libraries)",
		}
	}

	// Parse version from first line
	lines := strings.Split(string(output), "\n")
	version := "unknown"
	if len(lines) > 0 {
		parts := strings.Fields(lines[0])
		if len(parts) >= 3 {
			version = parts[2]
		}
	}

	return checkResult{
		name:    "ffprobe (optional)",
		message: fmt.Sprintf("version %s", version),
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is built in, so this only fails if the driver is broken
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase opens the history read-only and reports its health
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first update)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	// A dry-run session never writes, so doctor is safe during an update
	db, err := store.Open(dbPath, &store.OpenOptions{Mode: store.DryRun})
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	version, err := db.SchemaVersion()
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot read schema version: %v", err),
		}
	}

	counts := make([]string, 0, len(store.Tables))
	for _, table := range store.Tables {
		n, err := db.CountRows(table)
		if err != nil {
			return checkResult{
				name:    "Database",
				error:   true,
				message: fmt.Sprintf("cannot count %s: %v", table, err),
			}
		}
		counts = append(counts, fmt.Sprintf("%s %s", humanize.Comma(n), table))
	}

	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, schema v%d, %s)", dbPath,
			humanize.Bytes(uint64(info.Size())), version, strings.Join(counts, ", ")),
	}
}

// checkLibraryDirectory verifies the library directory is readable
func checkLibraryDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check read permission by trying to list directory
	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Library directory",
		message: fmt.Sprintf("%s (%d entries)", path, len(entries)),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)

	// The history grows by a few bytes per change; 100 MB is plenty
	warning := availBytes < 100*1000*1000
	warningMsg := ""
	if warning {
		warningMsg = " (low space!)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", humanize.Bytes(availBytes), warningMsg),
	}
}
