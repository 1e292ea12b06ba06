// Package lock provides advisory flock-based lock files guarding directories
// that only one process may use at a time.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside a guarded directory.
const FileName = "LOCK"

// HeldError is returned when another process or handle holds the lock.
type HeldError struct {
	PID   int
	Owner string
	Path  string
}

func (e *HeldError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("%s is locked by %s (pid %d)", e.Path, e.Owner, e.PID)
	}
	return fmt.Sprintf("%s is locked by pid %d", e.Path, e.PID)
}

// Lock is an acquired lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock on dir, creating it if needed. owner is
// recorded in the lock file for diagnostics.
func Acquire(dir, owner string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		held := &HeldError{Path: path}
		if info, ok := Inspect(dir); ok {
			held.PID, held.Owner = info.PID, info.Owner
		}
		return nil, held
	}

	content := fmt.Sprintf("pid=%d\nowner=%s\ntime=%s\n", os.Getpid(), owner, time.Now().UTC().Format(time.RFC3339))
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.WriteAt([]byte(content), 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{file: f, path: path}, nil
}

// Release removes the lock file and releases the lock. Safe on a nil or
// already released lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// Info describes the holder recorded in a lock file.
type Info struct {
	PID   int
	Owner string
	Since time.Time
}

// Inspect reads the lock file in dir without taking the lock.
func Inspect(dir string) (Info, bool) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return Info{}, false
	}
	var info Info
	for line := range strings.Lines(string(data)) {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "owner":
			info.Owner = value
		case "time":
			info.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info, info.PID != 0
}
