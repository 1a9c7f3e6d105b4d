package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const sessionExt = ".log"

// Session is a log file for one run of the terminal UI.
type Session struct {
	Dir   string
	RunID string
	Path  string
	file  *os.File
}

// NewSession creates baseDir if needed and opens <baseDir>/<run-id>.log.
func NewSession(baseDir string) (*Session, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("log dir is empty")
	}
	dir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve log dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	id := runID()
	path := filepath.Join(dir, id+sessionExt)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	return &Session{Dir: dir, RunID: id, Path: path, file: file}, nil
}

// Writer returns the session file.
func (s *Session) Writer() *os.File {
	return s.file
}

// Close closes the session file. It is safe on a nil Session.
func (s *Session) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

func runID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102-150405"), os.Getpid())
}

// SessionInfo describes a session log found on disk.
type SessionInfo struct {
	RunID   string
	Path    string
	Size    int64
	ModTime time.Time
}

// ListSessions returns the session logs in dir, newest first. A missing
// directory yields no sessions.
func ListSessions(dir string) ([]SessionInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, SessionInfo{
			RunID:   strings.TrimSuffix(entry.Name(), sessionExt),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].ModTime.Equal(sessions[j].ModTime) {
			return sessions[i].RunID > sessions[j].RunID
		}
		return sessions[i].ModTime.After(sessions[j].ModTime)
	})
	return sessions, nil
}

// FindLatestLog returns the most recent session log in dir, or "" if none.
func FindLatestLog(dir string) (string, error) {
	sessions, err := ListSessions(dir)
	if err != nil || len(sessions) == 0 {
		return "", err
	}
	return sessions[0].Path, nil
}
