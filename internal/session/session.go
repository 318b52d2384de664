// Package session allocates per-run working directories.
//
// Each session lives under a common root as <root>/<id>/ with an outputs
// directory the external process runs in and a logs directory for its
// transcripts.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentpipe/internal/logging"

	"github.com/google/uuid"
)

var (
	// ErrInvalidID is returned for identifiers that are not UUIDs.
	ErrInvalidID = errors.New("invalid session id")
	// ErrNotFound is returned when a session directory does not exist.
	ErrNotFound = errors.New("session not found")
)

// Session is one allocated working area.
type Session struct {
	ID        string
	Root      string
	CreatedAt time.Time
}

// New creates a session with a fresh id and its directories.
func New(root string) (*Session, error) {
	if root == "" {
		return nil, fmt.Errorf("session root is empty")
	}
	s := &Session{ID: uuid.NewString(), Root: root, CreatedAt: time.Now()}
	for _, dir := range []string{s.OutputsDir(), s.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	logging.Session("Created session %s at %s", s.ID, s.Dir())
	return s, nil
}

// Open returns an existing session. The outputs directory is recreated if
// it has been removed.
func Open(root, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	s := &Session{ID: id, Root: root}
	info, err := os.Stat(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, s.Dir())
	}
	s.CreatedAt = info.ModTime()
	if err := os.MkdirAll(s.OutputsDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create outputs directory: %w", err)
	}
	logging.SessionDebug("Opened session %s", id)
	return s, nil
}

// Dir is the session's base directory.
func (s *Session) Dir() string { return filepath.Join(s.Root, s.ID) }

// OutputsDir is where the external process runs and writes its files.
func (s *Session) OutputsDir() string { return filepath.Join(s.Dir(), "outputs") }

// LogsDir holds run transcripts.
func (s *Session) LogsDir() string { return filepath.Join(s.Dir(), "logs") }

// TranscriptPath is the transcript file for one run within the session.
func (s *Session) TranscriptPath(runID string) string {
	return filepath.Join(s.LogsDir(), runID+".log")
}
