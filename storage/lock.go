package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const lockFileName = "pchat.lock"

// InstanceLock guards a data directory against concurrent pchat processes.
// Two writers of the same store would overwrite each other's conversations.
type InstanceLock struct {
	path string
}

// NewInstanceLock returns the lock for dataDir without acquiring it.
func NewInstanceLock(dataDir string) *InstanceLock {
	return &InstanceLock{path: filepath.Join(dataDir, lockFileName)}
}

// Acquire writes the current PID to the lock file.
func (l *InstanceLock) Acquire() error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(l.path, []byte(pid), 0600); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Release removes the lock file. A missing file is not an error.
func (l *InstanceLock) Release() error {
	err := os.Remove(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Check reports whether another live process holds the lock. Stale or
// unreadable lock files are removed.
func (l *InstanceLock) Check() (locked bool, pid int, err error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		_ = os.Remove(l.path)
		return false, 0, nil
	}
	if pid == os.Getpid() {
		return false, pid, nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil || proc.Signal(syscall.Signal(0)) != nil {
		_ = os.Remove(l.path)
		return false, 0, nil
	}
	return true, pid, nil
}
