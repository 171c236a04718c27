package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// defaultMaxLogBytes is the size at which the audit log is rotated to
// <path>.1. One backup is kept.
const defaultMaxLogBytes = 10 << 20

// Event kinds.
const (
	EventCommand = "command"
	EventAuth    = "auth"
)

// AuditEvent records one processed command or one SSH login attempt.
type AuditEvent struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Source     string `json:"source"` // "cli" or "ssh"
	SessionID  string `json:"session_id,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	User       string `json:"user,omitempty"`
	Command    string `json:"command"`
	Mocked     bool   `json:"mocked"`
	RuleID     int    `json:"rule_id,omitempty"`
	RuleName   string `json:"rule_name,omitempty"`
	Action     string `json:"action,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	AuthMethod string `json:"auth_method,omitempty"`
	Credential string `json:"credential,omitempty"`
}

type AuditLogger struct {
	path     string
	maxBytes int64
	file     *os.File
	size     int64
	mu       sync.Mutex
}

// New opens path for appending, creating it and its directory if needed.
func New(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	l := &AuditLogger{path: path, maxBytes: defaultMaxLogBytes}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file = file
	l.size = info.Size()
	return nil
}

// rotate moves the current file to <path>.1 and opens a fresh one. When
// the rename fails the current file is reopened so logging can go on.
// l.file is nil only if no file could be opened at all.
func (l *AuditLogger) rotate() error {
	closeErr := l.file.Close()
	l.file = nil
	renameErr := os.Rename(l.path, l.path+".1")
	if err := l.open(); err != nil {
		return errors.Join(closeErr, renameErr, err)
	}
	return errors.Join(closeErr, renameErr)
}

// Log appends event as one JSON line. Commands are recorded verbatim.
func (l *AuditLogger) Log(event AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size >= l.maxBytes {
		if err := l.rotate(); err != nil {
			if l.file == nil {
				return err
			}
			logrus.WithError(err).WithField("path", l.path).Warn("audit log rotation failed, appending to the current file")
		}
	}
	n, err := l.file.Write(data)
	l.size += int64(n)
	return err
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
