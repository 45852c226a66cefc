// Package audit writes an append-only JSONL record of owner commands and
// terminal lifecycle transitions.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Requestor string                 `json:"requestor"`
	Interface string                 `json:"interface,omitempty"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outcome   string                 `json:"outcome"`
	Code      string                 `json:"code,omitempty"`
}

// Logger appends entries to audit.jsonl under the given directory.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
}

// NewLogger creates the log directory if needed and opens the audit file
// for append-only writing.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	filePath := filepath.Join(logDir, "audit.jsonl")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &Logger{filePath: filePath, file: file}, nil
}

// Record writes one entry. The timestamp is stamped here; failures go to
// stderr rather than back to the caller, auditing must never block the
// control path.
func (l *Logger) Record(requestor, iface, action string, params map[string]interface{}, outcome, code string) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Requestor: requestor,
		Interface: iface,
		Action:    action,
		Params:    params,
		Outcome:   outcome,
		Code:      code,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal audit entry: %v\n", err)
		return
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write audit entry: %v\n", err)
		return
	}
	if err := l.file.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to sync audit log: %v\n", err)
	}
}

// FilePath returns the path of the underlying file.
func (l *Logger) FilePath() string {
	return l.filePath
}

// Close closes the underlying file. Record calls after Close are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
