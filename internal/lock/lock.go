// Package lock provides per-key mutexes for serializing writes to
// date-keyed state files and a flock-based guard so only one runner
// owns a workspace at a time.
package lock

import (
	"fmt"
	"os"
	"sync"
	"syscall"
)

// MutexMap hands out one mutex per key. Plan and closure stores key by
// date, so writes to different dates never contend.
type MutexMap struct {
	mu      sync.RWMutex
	mutexes map[string]*sync.Mutex
}

func NewMutexMap() *MutexMap {
	return &MutexMap{mutexes: make(map[string]*sync.Mutex)}
}

func (m *MutexMap) Lock(key string) {
	m.forKey(key).Lock()
}

func (m *MutexMap) Unlock(key string) {
	m.forKey(key).Unlock()
}

func (m *MutexMap) forKey(key string) *sync.Mutex {
	m.mu.RLock()
	mu, ok := m.mutexes[key]
	m.mu.RUnlock()
	if ok {
		return mu
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if mu, ok = m.mutexes[key]; ok {
		return mu
	}
	mu = &sync.Mutex{}
	m.mutexes[key] = mu
	return mu
}

// FileLock is an advisory flock on the runner lock file. The holder's
// PID is written into the file for diagnostics; the flock itself is the
// authority, so a stale PID after a crash never blocks a new runner.
type FileLock struct {
	path string
	file *os.File
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock acquires the lock without blocking. Failure usually means
// another runner already owns this workspace.
func (fl *FileLock) TryLock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("acquire lock (is another runner active?): %w", err)
	}

	if err := fl.writePID(f); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return err
	}

	fl.file = f
	return nil
}

func (fl *FileLock) writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync lock file: %w", err)
	}
	return nil
}

// Unlock releases the flock and removes the lock file. Safe to call on
// a lock that was never acquired.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		fl.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}
	if err := fl.file.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}

	os.Remove(fl.path)
	fl.file = nil
	return nil
}
