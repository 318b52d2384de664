package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one entry of the run audit trail.
type AuditEventType string

const (
	AuditRunStart       AuditEventType = "run_start"
	AuditProcessSpawn   AuditEventType = "process_spawn"
	AuditProcessExit    AuditEventType = "process_exit"
	AuditRunComplete    AuditEventType = "run_complete"
	AuditRunFailed      AuditEventType = "run_failed"
	AuditCoerceFallback AuditEventType = "coerce_fallback"
)

// AuditEvent is one JSON line of the audit trail.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`      // Unix milliseconds
	EventType  AuditEventType         `json:"event"`   // What happened
	SessionID  string                 `json:"session"` // Session correlation
	RunID      string                 `json:"run"`     // Run correlation
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// AuditLogger writes audit events scoped to one run.
type AuditLogger struct {
	sessionID string
	runID     string
}

// InitAudit opens the day's audit file. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	file, err := os.OpenFile(filepath.Join(dir, date+"_audit.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditRun returns an audit logger for one run of a session.
func AuditRun(sessionID, runID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID, runID: runID}
}

// Log writes an audit event, filling in the timestamp and run scope.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.Write(append(data, '\n'))
	}
}

// =============================================================================
// CONVENIENCE METHODS
// =============================================================================

// RunStart records the query a run was started with.
func (a *AuditLogger) RunStart(query string) {
	a.Log(AuditEvent{EventType: AuditRunStart, Success: true, Message: query})
}

// ProcessSpawn records a started child process.
func (a *AuditLogger) ProcessSpawn(pid int, command string) {
	a.Log(AuditEvent{
		EventType: AuditProcessSpawn,
		Target:    command,
		Success:   true,
		Fields:    map[string]interface{}{"pid": pid},
	})
}

// ProcessExit records how the child process ended.
func (a *AuditLogger) ProcessExit(code int, duration time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditProcessExit,
		Success:    err == nil && code == 0,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"exit_code": code},
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.Log(e)
}

// RunComplete records a run that produced a result.
func (a *AuditLogger) RunComplete(steps int, fallback bool, duration time.Duration) {
	if fallback {
		a.Log(AuditEvent{EventType: AuditCoerceFallback, Success: false})
	}
	a.Log(AuditEvent{
		EventType:  AuditRunComplete,
		Success:    true,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"steps": steps, "fallback": fallback},
	})
}

// RunFailed records a run that ended with an error.
func (a *AuditLogger) RunFailed(err error, duration time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditRunFailed,
		Success:    false,
		DurationMs: duration.Milliseconds(),
		Error:      err.Error(),
	})
}
