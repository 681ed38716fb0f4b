package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventRunStart   EventType = "run_start"
	EventMetaCreate EventType = "meta_create"
	EventMetaUpdate EventType = "meta_update"
	EventChange     EventType = "change"
	EventError      EventType = "error"
	EventRunEnd     EventType = "run_end"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one audited mutation or run transition
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	RunID        string            `json:"run_id"`
	DryRun       bool              `json:"dry_run,omitempty"`
	PersistentID string            `json:"persistent_id,omitempty"`
	Title        string            `json:"title,omitempty"`
	Attribute    string            `json:"attribute,omitempty"`
	Old          *string           `json:"old,omitempty"`
	New          string            `json:"new,omitempty"`
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger discards
// everything, so callers never need to check.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	dryRun   bool
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level.
// Every event it writes carries a fresh run id.
func NewEventLogger(outputDir string, minLevel EventLevel, dryRun bool) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.New().String()
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s-%s.jsonl", timestamp, runID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		dryRun:   dryRun,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID
	event.DryRun = l.dryRun

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogRunStart records the start of an update pass
func (l *EventLogger) LogRunStart(at time.Time, source string) error {
	return l.Log(&Event{
		Timestamp: at,
		Level:     LevelInfo,
		Event:     EventRunStart,
		Extra:     map[string]string{"source": source},
	})
}

// LogMetaCreate records a new Meta row
func (l *EventLogger) LogMetaCreate(at time.Time, id, title string) error {
	return l.Log(&Event{
		Timestamp:    at,
		Level:        LevelInfo,
		Event:        EventMetaCreate,
		PersistentID: id,
		Title:        title,
	})
}

// LogMetaUpdate records one changed static attribute. A nil old value
// means the attribute was absent.
func (l *EventLogger) LogMetaUpdate(at time.Time, id, title, attribute string, old *string, value string) error {
	return l.Log(&Event{
		Timestamp:    at,
		Level:        LevelInfo,
		Event:        EventMetaUpdate,
		PersistentID: id,
		Title:        title,
		Attribute:    attribute,
		Old:          old,
		New:          value,
	})
}

// LogChange records a new change-log row. A nil old value marks the first
// observation.
func (l *EventLogger) LogChange(at time.Time, id, title, metric string, old *int64, value int64) error {
	var oldStr *string
	if old != nil {
		s := fmt.Sprintf("%d", *old)
		oldStr = &s
	}

	return l.Log(&Event{
		Timestamp:    at,
		Level:        LevelInfo,
		Event:        EventChange,
		PersistentID: id,
		Title:        title,
		Attribute:    metric,
		Old:          oldStr,
		New:          fmt.Sprintf("%d", value),
	})
}

// LogError records a failed item
func (l *EventLogger) LogError(at time.Time, id string, err error) error {
	return l.Log(&Event{
		Timestamp:    at,
		Level:        LevelError,
		Event:        EventError,
		PersistentID: id,
		Error:        err.Error(),
	})
}

// LogRunEnd records the outcome counters of an update pass
func (l *EventLogger) LogRunEnd(at time.Time, counters map[string]int) error {
	extra := make(map[string]string, len(counters))
	for k, v := range counters {
		extra[k] = fmt.Sprintf("%d", v)
	}

	return l.Log(&Event{
		Timestamp: at,
		Level:     LevelInfo,
		Event:     EventRunEnd,
		Extra:     extra,
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the id stamped on every event
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
