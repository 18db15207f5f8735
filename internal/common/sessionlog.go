package common

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SessionEntry records one completed analysis run for the audit trail: which
// capture was analyzed, under which profile, and what the run found.
type SessionEntry struct {
	SessionID     string    `json:"sessionId"`
	Capture       string    `json:"capture"`
	CaptureSHA256 string    `json:"captureSha256,omitempty"`
	Profile       string    `json:"profile"`
	Frames        int       `json:"frames"`
	Alerts        int       `json:"alerts"`
	Errors        int       `json:"errors"`
	Warnings      int       `json:"warnings"`
	Pass          bool      `json:"pass"`
	Ts            time.Time `json:"ts"`
}

// SessionLog provides append-only access to a JSONL audit log of analysis
// runs.
type SessionLog struct {
	path string
	mu   sync.Mutex
}

// NewSessionLog returns a SessionLog that writes to the provided path.
func NewSessionLog(path string) *SessionLog {
	return &SessionLog{path: path}
}

// Path returns the backing file path for the log.
func (l *SessionLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a new entry to the audit log, one JSON object per line.
func (l *SessionLog) Append(entry SessionEntry) error {
	if l == nil {
		return errors.New("nil session log")
	}
	if entry.SessionID == "" {
		return errors.New("session entry missing sessionId")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadSessionLog loads every entry from the supplied JSONL file.
func ReadSessionLog(path string) ([]SessionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []SessionEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry SessionEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode session entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
