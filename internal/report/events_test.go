package report

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// readEvents decodes every line of a closed event log
func readEvents(t *testing.T, path string) []Event {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var decoded Event
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("Line %d is not valid JSON: %v\nLine: %s", lineNum, err, scanner.Text())
		}
		events = append(events, decoded)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "events")

	logger, err := NewEventLogger(tmpDir, LevelDebug, false)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}

	// events-<timestamp>-<run id prefix>.jsonl
	filename := filepath.Base(logger.Path())
	if !strings.HasPrefix(filename, "events-") || !strings.HasSuffix(filename, logger.RunID()[:8]+".jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
	if len(logger.RunID()) != 36 {
		t.Errorf("Expected a UUID run id, got %q", logger.RunID())
	}
}

func TestEventLogger_StampsRun(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug, true)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := logger.LogMetaCreate(at, "00000000000000A1", "Song"); err != nil {
		t.Fatalf("LogMetaCreate failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.RunID != logger.RunID() {
		t.Errorf("Expected run id %s, got %s", logger.RunID(), e.RunID)
	}
	if !e.DryRun {
		t.Error("Expected dry_run to be set")
	}
	if !e.Timestamp.Equal(at) {
		t.Errorf("Expected timestamp %v, got %v", at, e.Timestamp)
	}
	if e.Event != EventMetaCreate || e.PersistentID != "00000000000000A1" || e.Title != "Song" {
		t.Errorf("Unexpected event: %+v", e)
	}
}

func TestEventLogger_UpdateRun(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug, false)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	old := "Old Title"
	prev := int64(3)

	logger.LogRunStart(at, "/music")
	logger.LogMetaUpdate(at, "00000000000000A1", "New Title", "Title", &old, "New Title")
	logger.LogMetaUpdate(at, "00000000000000A1", "New Title", "Genre", nil, "Rock")
	logger.LogChange(at, "00000000000000A1", "New Title", "PlayCount", nil, 3)
	logger.LogChange(at, "00000000000000A1", "New Title", "PlayCount", &prev, 5)
	logger.LogError(at, "00000000000000B2", errors.New("boom"))
	logger.LogRunEnd(at, map[string]int{"tracks": 2, "errors": 1})
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 7 {
		t.Fatalf("Expected 7 events, got %d", len(events))
	}

	if events[0].Event != EventRunStart || events[0].Extra["source"] != "/music" {
		t.Errorf("Unexpected run start: %+v", events[0])
	}
	if events[1].Old == nil || *events[1].Old != "Old Title" || events[1].New != "New Title" {
		t.Errorf("Unexpected title update: %+v", events[1])
	}
	if events[2].Old != nil {
		t.Errorf("Absent old value should be omitted, got %q", *events[2].Old)
	}
	if events[3].Old != nil || events[3].New != "3" {
		t.Errorf("Unexpected first play count: %+v", events[3])
	}
	if events[4].Old == nil || *events[4].Old != "3" || events[4].New != "5" {
		t.Errorf("Unexpected play count change: %+v", events[4])
	}
	if events[5].Level != LevelError || events[5].Error != "boom" {
		t.Errorf("Unexpected error event: %+v", events[5])
	}
	if events[6].Extra["tracks"] != "2" || events[6].Extra["errors"] != "1" {
		t.Errorf("Unexpected run end counters: %+v", events[6].Extra)
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug, false)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				if err := logger.Log(&Event{Level: LevelInfo, Event: EventChange}); err != nil {
					t.Errorf("Concurrent log failed: %v", err)
				}
			}
		}()
	}

	wg.Wait()
	logger.Close()

	expected := numGoroutines * eventsPerGoroutine
	if n := len(readEvents(t, logger.Path())); n != expected {
		t.Errorf("Expected %d events, got %d", expected, n)
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	// Should not panic
	if err := logger.Log(&Event{Level: LevelInfo, Event: EventChange}); err != nil {
		t.Errorf("NullLogger.Log should not return error, got: %v", err)
	}
	if err := logger.LogChange(time.Now(), "id", "title", "Rating", nil, 80); err != nil {
		t.Errorf("NullLogger.LogChange should not return error, got: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close should not return error, got: %v", err)
	}
	if logger.Path() != "" || logger.RunID() != "" {
		t.Error("NullLogger should have no path or run id")
	}
}

func TestEventLogger_AutoTimestamp(t *testing.T) {
	logger, err := NewEventLogger(t.TempDir(), LevelDebug, false)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	if err := logger.Log(&Event{Level: LevelInfo, Event: EventChange}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	logger.Close()

	events := readEvents(t, logger.Path())
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if time.Since(events[0].Timestamp) > 5*time.Second {
		t.Errorf("Timestamp is not recent: %v", events[0].Timestamp)
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	all := []Event{
		{Level: LevelDebug, Event: EventChange},
		{Level: LevelInfo, Event: EventMetaUpdate},
		{Level: LevelWarning, Event: EventMetaCreate},
		{Level: LevelError, Event: EventError},
	}

	testCases := []struct {
		name          string
		minLevel      EventLevel
		expectedCount int
	}{
		{"LevelDebug logs all", LevelDebug, 4},
		{"LevelInfo skips debug", LevelInfo, 3},
		{"LevelWarning skips debug and info", LevelWarning, 2},
		{"LevelError only logs errors", LevelError, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewEventLogger(t.TempDir(), tc.minLevel, false)
			if err != nil {
				t.Fatalf("NewEventLogger failed: %v", err)
			}

			for _, e := range all {
				if err := logger.Log(&e); err != nil {
					t.Fatalf("Log failed: %v", err)
				}
			}
			logger.Close()

			if n := len(readEvents(t, logger.Path())); n != tc.expectedCount {
				t.Errorf("Expected %d events logged, got %d", tc.expectedCount, n)
			}
		})
	}
}
