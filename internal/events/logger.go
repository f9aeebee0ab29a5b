// Package events records ducking stage decisions as JSON lines.
package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-ducker/internal/util"
)

// EventType represents the type of ducking event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventBatch     EventType = "batch"
	EventTracking  EventType = "tracking"
	EventRestored  EventType = "restored"
	EventStopped   EventType = "stopped"
	EventEnumerate EventType = "enumerate_error"
)

// StageEvent represents a single ducking event.
type StageEvent struct {
	Timestamp        time.Time `json:"ts"`
	Event            EventType `json:"event"`
	Stage            string    `json:"stage,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	TrackedProcessID int       `json:"tracked_process_id,omitempty"`
	Sessions         int       `json:"sessions,omitempty"`
	SilenceMs        int64     `json:"silence_ms,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Logger writes ducking events to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// NewLogger creates a new event logger.
func NewLogger(filePath string) (*Logger, error) {
	if err := ValidatePath(filePath); err != nil {
		return nil, util.WrapError("open event log", err)
	}
	if err := prepareDir(filepath.Dir(filePath)); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, util.WrapError("open event log", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file.
func (l *Logger) Log(event *StageEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// ReadLast reads the last n events from the log file, newest first.
func ReadLast(filePath string, n int) ([]StageEvent, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []StageEvent{}, nil
		}
		return nil, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	start := max(0, len(lines)-n)
	lines = lines[start:]

	events := make([]StageEvent, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		var event StageEvent
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	return events, nil
}
