// Package audit records transaction lifecycle events (begin, commit,
// rollback, write-write conflict, garbage collection) for observability.
// It never influences engine semantics; an audit write failure is
// reported to the caller but never unwinds a commit or rollback that
// already succeeded. Adapted from the document-store audit logger's
// Config/AuditLogger/severity-and-operation-filter shape.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of transaction lifecycle event recorded.
type EventType string

const (
	EventBegin              EventType = "begin"
	EventCommit             EventType = "commit"
	EventRollback           EventType = "rollback"
	EventWriteWriteConflict EventType = "write_write_conflict"
	EventGCRun              EventType = "gc_run"
	EventRecover            EventType = "recover"
)

// Severity is the level of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is a single audit log entry.
type Event struct {
	Timestamp         time.Time     `json:"timestamp"`
	Event             EventType     `json:"event"`
	TxID              uint64        `json:"txId,omitempty"`
	CorrelationID     uuid.UUID     `json:"correlationId,omitempty"`
	Success           bool          `json:"success"`
	ErrorMessage      string        `json:"errorMessage,omitempty"`
	Duration          time.Duration `json:"duration,omitempty"`
	Severity          Severity      `json:"severity"`
	WriteSetSize      int           `json:"writeSetSize,omitempty"`
	ReadSetSize       int           `json:"readSetSize,omitempty"`
	VersionsReclaimed int           `json:"versionsReclaimed,omitempty"`
}

// Config holds audit logging configuration.
type Config struct {
	Enabled      bool      // Enable/disable audit logging
	OutputWriter io.Writer // Output destination (file, stdout, etc.)
	Format       string    // "json" or "text"
	MinSeverity  Severity  // Minimum severity to log
}

// DefaultConfig returns a default audit configuration: enabled, JSON to
// stdout, logging everything.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		OutputWriter: os.Stdout,
		Format:       "json",
		MinSeverity:  SeverityInfo,
	}
}

// Logger handles audit logging for a single engine.
type Logger struct {
	config *Config
	mu     sync.RWMutex
	file   *os.File // non-nil if logging to a file we opened
}

// NewLogger creates a Logger writing per config. A nil config yields
// DefaultConfig().
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	return &Logger{config: config}
}

// NewFileLogger creates a Logger that appends to the file at path.
func NewFileLogger(path string, config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open log file: %w", err)
	}
	config.OutputWriter = file

	return &Logger{config: config, file: file}, nil
}

// Log writes event, subject to the severity filter. A disabled logger is
// a silent no-op.
func (l *Logger) Log(event Event) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.config.Enabled || !l.shouldLog(event.Severity) {
		return nil
	}

	var output []byte
	var err error
	if l.config.Format == "json" {
		output, err = json.Marshal(event)
		if err != nil {
			return fmt.Errorf("audit: marshal event: %w", err)
		}
		output = append(output, '\n')
	} else {
		output = []byte(l.formatText(event))
	}

	_, err = l.config.OutputWriter.Write(output)
	return err
}

// LogBegin records a transaction begin.
func (l *Logger) LogBegin(txID uint64, correlationID uuid.UUID) error {
	return l.Log(Event{
		Timestamp:     time.Now(),
		Event:         EventBegin,
		TxID:          txID,
		CorrelationID: correlationID,
		Success:       true,
		Severity:      SeverityInfo,
	})
}

// LogCommit records a transaction commit attempt.
func (l *Logger) LogCommit(txID uint64, correlationID uuid.UUID, writeSetSize int, duration time.Duration, err error) error {
	return l.Log(Event{
		Timestamp:     time.Now(),
		Event:         EventCommit,
		TxID:          txID,
		CorrelationID: correlationID,
		Success:       err == nil,
		ErrorMessage:  errString(err),
		Duration:      duration,
		Severity:      severityFor(err),
		WriteSetSize:  writeSetSize,
	})
}

// LogRollback records a transaction rollback, noting whether it was
// explicitly requested or triggered internally by a write-write
// conflict.
func (l *Logger) LogRollback(txID uint64, correlationID uuid.UUID, writeSetSize int, causedByConflict bool) error {
	sev := SeverityInfo
	if causedByConflict {
		sev = SeverityWarning
	}
	return l.Log(Event{
		Timestamp:     time.Now(),
		Event:         EventRollback,
		TxID:          txID,
		CorrelationID: correlationID,
		Success:       true,
		Severity:      sev,
		WriteSetSize:  writeSetSize,
	})
}

// LogWriteWriteConflict records an aborted writer losing a conflict.
func (l *Logger) LogWriteWriteConflict(txID uint64, correlationID uuid.UUID) error {
	return l.Log(Event{
		Timestamp:     time.Now(),
		Event:         EventWriteWriteConflict,
		TxID:          txID,
		CorrelationID: correlationID,
		Success:       false,
		Severity:      SeverityWarning,
	})
}

// LogGCRun records a garbage collection sweep.
func (l *Logger) LogGCRun(versionsReclaimed int, duration time.Duration) error {
	return l.Log(Event{
		Timestamp:         time.Now(),
		Event:             EventGCRun,
		Success:           true,
		Duration:          duration,
		Severity:          SeverityInfo,
		VersionsReclaimed: versionsReclaimed,
	})
}

// LogRecover records a startup log replay.
func (l *Logger) LogRecover(recordCount int, duration time.Duration, err error) error {
	return l.Log(Event{
		Timestamp:    time.Now(),
		Event:        EventRecover,
		Success:      err == nil,
		ErrorMessage: errString(err),
		Duration:     duration,
		Severity:     severityFor(err),
		WriteSetSize: recordCount,
	})
}

// Close closes any file this logger opened itself.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetEnabled enables or disables audit logging at runtime.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Enabled = enabled
}

func (l *Logger) shouldLog(severity Severity) bool {
	levels := map[Severity]int{SeverityInfo: 1, SeverityWarning: 2, SeverityError: 3}
	return levels[severity] >= levels[l.config.MinSeverity]
}

func (l *Logger) formatText(event Event) string {
	status := "SUCCESS"
	if !event.Success {
		status = "FAILURE"
	}

	msg := fmt.Sprintf("[%s] [%s] [%s] %s tx=%d correlation=%s",
		event.Timestamp.Format(time.RFC3339),
		event.Severity,
		status,
		event.Event,
		event.TxID,
		event.CorrelationID,
	)

	if event.Duration > 0 {
		msg += fmt.Sprintf(" (took %v)", event.Duration)
	}
	if event.WriteSetSize > 0 {
		msg += fmt.Sprintf(" write_set=%d", event.WriteSetSize)
	}
	if event.VersionsReclaimed > 0 {
		msg += fmt.Sprintf(" reclaimed=%d", event.VersionsReclaimed)
	}
	if event.ErrorMessage != "" {
		msg += fmt.Sprintf(" error=%q", event.ErrorMessage)
	}

	return msg + "\n"
}

func severityFor(err error) Severity {
	if err != nil {
		return SeverityError
	}
	return SeverityInfo
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
