package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// DBLock serializes database writes across findly processes with a lock file
// next to the database, and across goroutines of one process with a mutex.
type DBLock struct {
	mu   sync.Mutex
	file *flock.Flock
}

// NewDBLock returns the lock guarding the database at dbPath. dbPath must be
// resolved already and its directory must exist.
func NewDBLock(dbPath string) *DBLock {
	return &DBLock{file: flock.New(dbPath + ".lock")}
}

// Path is the lock file location.
func (l *DBLock) Path() string {
	return l.file.Path()
}

// Lock blocks until this goroutine holds the lock. Waiting on another
// process is logged once.
func (l *DBLock) Lock() error {
	l.mu.Lock()
	locked, err := l.file.TryLock()
	if err == nil && !locked {
		Log.Infof("Another findly process is writing to the database, waiting for %s", l.Path())
		err = l.file.Lock()
	}
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("acquire %s: %w", l.Path(), err)
	}
	return nil
}

// Unlock releases a lock taken with Lock.
func (l *DBLock) Unlock() error {
	defer l.mu.Unlock()
	if err := l.file.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release %s: %w", l.Path(), err)
	}
	return nil
}

// WithLock runs fn while holding the lock.
func (l *DBLock) WithLock(fn func() error) error {
	if err := l.Lock(); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}

// GetAbsDBPath resolves the database path, defaulting to
// ~/.config/findly/findly.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "findly", "findly.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
