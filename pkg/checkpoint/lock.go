package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	errs "bartetl/pkg/errors"
)

// ErrLocked is returned by Lock when another live process holds the lock
var ErrLocked = errors.New("another scheduler instance is running")

// LockPath returns the lock file path that sits next to the checkpoint
func (m *Manager) LockPath() string {
	return m.path + ".lock"
}

// Lock claims the lock file for this process. A lock left behind by a
// process that no longer exists is reclaimed.
func (m *Manager) Lock() error {
	if err := os.MkdirAll(filepath.Dir(m.LockPath()), 0o755); err != nil {
		return errs.Checkpoint("lock", err)
	}
	for attempt := 0; attempt < 3; attempt++ {
		f, err := os.OpenFile(m.LockPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(m.LockPath())
				return errs.Checkpoint("lock", errors.Join(werr, cerr))
			}
			return nil
		}
		if !os.IsExist(err) {
			return errs.Checkpoint("lock", err)
		}

		observed, err := os.ReadFile(m.LockPath())
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errs.Checkpoint("lock", err)
		}
		pid, perr := parseOwner(observed)
		if perr == nil && pid != os.Getpid() && processAlive(pid) {
			return errs.Checkpoint("lock", fmt.Errorf("%w (pid %d)", ErrLocked, pid))
		}

		m.logger.WarnWithFields("Reclaiming stale lock", map[string]interface{}{
			"path": m.LockPath(),
			"pid":  pid,
		})
		if err := m.reclaim(observed); err != nil {
			return err
		}
	}
	return errs.Checkpoint("lock", ErrLocked)
}

// reclaim moves the lock file aside and deletes it only if it still holds
// the contents judged stale. A lock claimed by another process in the
// meantime is put back for the caller to check again.
func (m *Manager) reclaim(observed []byte) error {
	aside := fmt.Sprintf("%s.stale.%d", m.LockPath(), os.Getpid())
	if err := os.Rename(m.LockPath(), aside); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Checkpoint("lock", err)
	}
	defer os.Remove(aside)

	moved, err := os.ReadFile(aside)
	if err != nil {
		return errs.Checkpoint("lock", err)
	}
	if bytes.Equal(moved, observed) {
		return nil
	}

	// Link fails if the path exists, so a newer claim is never overwritten
	if err := os.Link(aside, m.LockPath()); err != nil && !os.IsExist(err) {
		return errs.Checkpoint("lock", err)
	}
	return nil
}

// Unlock releases the lock if this process holds it
func (m *Manager) Unlock() error {
	pid, err := m.lockOwner()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Checkpoint("unlock", err)
	}
	if pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(m.LockPath()); err != nil && !os.IsNotExist(err) {
		return errs.Checkpoint("unlock", err)
	}
	return nil
}

func (m *Manager) lockOwner() (int, error) {
	data, err := os.ReadFile(m.LockPath())
	if err != nil {
		return 0, err
	}
	return parseOwner(data)
}

func parseOwner(data []byte) (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
