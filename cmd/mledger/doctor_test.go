package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/util"
)

func TestMain(m *testing.M) {
	util.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestCheckFFprobe(t *testing.T) {
	result := checkFFprobe()

	// ffprobe is optional, so a missing binary is only a warning
	if result.error {
		t.Errorf("ffprobe check should not error, got: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected a message")
	}
}

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error - database will be created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("doctor should not create the database")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := db.SetMeta(store.NewMetaRow("00000000000000A1")); err != nil {
		t.Fatalf("failed to insert test row: %v", err)
	}
	if _, err := db.AppendChange(attr.PlayCount, "00000000000000A1", 100, 3); err != nil {
		t.Fatalf("failed to insert test change: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}
	for _, want := range []string{"schema v1", "1 Meta", "1 PlayCounts", "0 Ratings"} {
		if !strings.Contains(result.message, want) {
			t.Errorf("expected %q in message, got: %s", want, result.message)
		}
	}
}

func TestCheckDatabase_Corrupt(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corrupt.db")
	if err := os.WriteFile(dbPath, []byte("this is not a database, just some text that is long enough"), 0644); err != nil {
		t.Fatal(err)
	}

	if result := checkDatabase(dbPath); !result.error {
		t.Errorf("expected error for corrupt database, got: %s", result.message)
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckLibraryDirectory_Valid(t *testing.T) {
	result := checkLibraryDirectory(t.TempDir())

	if result.error {
		t.Errorf("library directory check failed: %s", result.message)
	}
}

func TestCheckLibraryDirectory_NonExistent(t *testing.T) {
	result := checkLibraryDirectory("/nonexistent/path/that/does/not/exist")

	if !result.error {
		t.Error("expected error for non-existent directory")
	}
}

func TestCheckLibraryDirectory_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkLibraryDirectory(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "test")

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path", "test")

	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
