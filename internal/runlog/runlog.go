// Package runlog writes the per-run JSONL audit trail. Each run gets its
// own file under the logs directory; every pipeline stage appends one JSON
// object per line.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// timeFormat is ISO-8601 UTC with milliseconds and a literal Z.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Entry is one audit line.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	RunID     string         `json:"run_id"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Log is an open per-run audit file. Safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	f     *os.File
	runID string
	path  string
}

// Open creates (or truncates) logs/<run_id>.jsonl under dir. The run id
// names the file and must be a single path component.
func Open(dir, runID string) (*Log, error) {
	if strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return nil, fmt.Errorf("run id %q is not a valid file name", runID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	path := filepath.Join(dir, runID+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}
	return &Log{f: f, runID: runID, path: path}, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Event appends an info-level line.
func (l *Log) Event(component, event string, payload map[string]any) {
	l.write("info", component, event, payload)
}

// Warn appends a warn-level line.
func (l *Log) Warn(component, event string, payload map[string]any) {
	l.write("warn", component, event, payload)
}

// Error appends an error-level line.
func (l *Log) Error(component, event string, payload map[string]any) {
	l.write("error", component, event, payload)
}

func (l *Log) write(level, component, event string, payload map[string]any) {
	if l == nil || l.f == nil {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC().Format(timeFormat),
		Level:     level,
		Component: component,
		RunID:     l.runID,
		Event:     event,
		Payload:   payload,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f.Write(append(data, '\n'))
}

// Close flushes and closes the file. Safe to call on nil.
func (l *Log) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.f.Close()
	l.f = nil
	return err
}
