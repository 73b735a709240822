// Package lockfile guards a CalCounter state directory with an exclusive flock
// so only one bot process polls a transport and writes the local database.
//
// The lock is released by the kernel when the process exits, gracefully or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "calcounter.lock"

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes the lock of stateDir, creating the directory if needed.
// owner describes the holder (for example the chat transport) and is written
// next to the pid for the benefit of a conflicting process.
func AcquireLock(stateDir, owner string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("Lockfile acquiring", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	// Not truncated on open: a losing process must still be able to read the holder.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		info := readExistingLockInfo(lockPath)
		slog.Error("Lockfile held by another CalCounter process", "error", err, "lock_path", lockPath, "holder", info)
		return nil, &LockError{LockPath: lockPath, ExistingInfo: info, Cause: err}
	}

	content := fmt.Sprintf("pid=%d\n", os.Getpid())
	if owner != "" {
		content += "owner=" + owner + "\n"
	}
	if err := writeInfo(file, content); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}
	if err := file.Sync(); err != nil {
		slog.Warn("Lockfile sync failed", "error", err, "lock_path", lockPath)
	}

	slog.Info("Lockfile acquired", "lock_path", lockPath, "pid", os.Getpid(), "owner", owner)
	return &Lock{file: file, path: lockPath}, nil
}

func writeInfo(file *os.File, content string) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	_, err := file.WriteAt([]byte(content), 0)
	return err
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Lockfile unlock failed", "error", err, "lock_path", l.path)
	}
	if err := l.file.Close(); err != nil {
		slog.Error("Lockfile close failed", "error", err, "lock_path", l.path)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Error("Lockfile remove failed", "error", err, "lock_path", l.path)
	}
	l.file = nil
	slog.Info("Lockfile released", "lock_path", l.path)
	return nil
}

// LockError reports that another process holds the lock.
type LockError struct {
	LockPath     string
	ExistingInfo string
	Cause        error
}

func (e *LockError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "another CalCounter instance is already running with this state directory (lock file: %s)", e.LockPath)
	if e.ExistingInfo != "" {
		fmt.Fprintf(&sb, "; holder: %s", e.ExistingInfo)
	}
	fmt.Fprintf(&sb, "; if no other instance is running the lock is stale and can be removed with: rm %s", e.LockPath)
	return sb.String()
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// readExistingLockInfo summarizes the holder recorded in the lock file.
func readExistingLockInfo(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return "unable to read lock file information"
	}
	if strings.TrimSpace(string(data)) == "" {
		return "lock file exists but contains no process information"
	}

	fields := parseLockInfo(string(data))
	var parts []string
	if pid, err := strconv.Atoi(fields["pid"]); err == nil && pid > 0 {
		state := "not running - stale lock"
		if isProcessRunning(pid) {
			state = "running"
		}
		parts = append(parts, fmt.Sprintf("PID %d (%s)", pid, state))
	}
	if owner := fields["owner"]; owner != "" {
		parts = append(parts, "owner "+owner)
	}
	if len(parts) == 0 {
		return "process information: " + strings.TrimSpace(string(data))
	}
	return strings.Join(parts, ", ")
}

// parseLockInfo reads "key=value" lines.
func parseLockInfo(content string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok && k != "" {
			fields[k] = v
		}
	}
	return fields
}

// isProcessRunning sends signal 0, which only checks that the process exists.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
