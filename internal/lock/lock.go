// Package lock implements the deployment lock that keeps two tool
// invocations from racing each other over the same key files.
//
// The lock is a directory under ~/.appscale/locks, created with mkdir
// as the atomic primitive. An info.json inside names the holder so a
// second invocation can say who it is waiting on. Locks older than the
// stale threshold are presumed abandoned by a crashed run and removed.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/altoplano/appscale-tools/internal/config"
	"github.com/altoplano/appscale-tools/internal/errors"
)

// Name is the lock directory's name under the locks dir.
const Name = "appscale.lock"

// retryInterval is how long Acquire sleeps between attempts while the
// lock is held.
const retryInterval = 200 * time.Millisecond

// Lock is an acquired deployment lock.
type Lock struct {
	Dir  string // the lock directory
	Info *Info  // who holds it (us)
}

// DefaultPath returns the deployment lock directory under the user's
// home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't find your home directory",
			"Set HOME and try again.")
	}
	return filepath.Join(home, ".appscale", "locks", Name), nil
}

// Acquire takes the deployment lock, waiting up to cfg.Timeout for a
// holder to release it. Stale locks are removed along the way. The
// command string is recorded so waiting invocations can say what is
// running.
func Acquire(lockDir string, cfg config.LockConfig, command string) (*Lock, error) {
	start := time.Now()

	for {
		l, err := TryAcquire(lockDir, command)
		if err == nil {
			return l, nil
		}
		if err != ErrLocked {
			return nil, err
		}

		if isStale(lockDir, cfg.Stale) {
			// The holder is long gone; clear it and go again.
			_ = os.RemoveAll(lockDir)
			continue
		}

		if time.Since(start)+retryInterval > cfg.Timeout {
			return nil, errors.New(errors.ErrLock,
				fmt.Sprintf("Timed out waiting for the deployment lock after %s", cfg.Timeout),
				fmt.Sprintf("Lock held by %s. Wait for it to finish, or run 'appscale clean' if it crashed.",
					Holder(lockDir)))
		}
		time.Sleep(retryInterval)
	}
}

// TryAcquire attempts to take the lock once, without waiting. Returns
// ErrLocked when another invocation holds it.
func TryAcquire(lockDir string, command string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(lockDir), 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't create "+filepath.Dir(lockDir),
			"Check the permissions on your home directory.")
	}

	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't create the lock directory",
			"Check the permissions on "+filepath.Dir(lockDir)+".")
	}

	info := NewInfo(command)
	data, err := info.Marshal()
	if err == nil {
		err = os.WriteFile(infoFile(lockDir), data, 0o644)
	}
	if err != nil {
		_ = os.RemoveAll(lockDir)
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't write the lock info file",
			"Check disk space and permissions under "+filepath.Dir(lockDir)+".")
	}

	return &Lock{Dir: lockDir, Info: info}, nil
}

// Release removes the lock, letting the next invocation in.
func (l *Lock) Release() error {
	if l == nil || l.Dir == "" {
		return nil // nothing to release
	}
	return forceRemove(l.Dir)
}

// ForceRelease removes a lock directory regardless of who holds it.
// Only for stuck or abandoned locks.
func ForceRelease(lockDir string) error {
	return forceRemove(lockDir)
}

// Held reports whether something currently holds the lock.
func Held(lockDir string) bool {
	info, err := os.Stat(lockDir)
	return err == nil && info.IsDir()
}

// Holder describes who holds the lock, if that can be determined.
func Holder(lockDir string) string {
	info, err := readInfo(infoFile(lockDir))
	if err != nil {
		return "unknown"
	}
	return info.String()
}

// HeldFor reports how long the lock has been held. known is false
// when the lock isn't held at all. Falls back to the directory's
// mtime when the info file is unreadable.
func HeldFor(lockDir string) (age time.Duration, known bool) {
	if info, err := readInfo(infoFile(lockDir)); err == nil {
		return info.Age(), true
	}
	if st, err := os.Stat(lockDir); err == nil {
		return time.Since(st.ModTime()), true
	}
	return 0, false
}

// isStale reports whether the lock looks abandoned. Normally that is
// judged by the holder info's age; a lock directory with no readable
// info file (a crash between mkdir and the info write leaves exactly
// that shape) is judged by the directory's own age.
func isStale(lockDir string, stale time.Duration) bool {
	if stale <= 0 {
		return false
	}

	if info, err := readInfo(infoFile(lockDir)); err == nil {
		return info.Age() > stale
	}

	if st, err := os.Stat(lockDir); err == nil {
		return time.Since(st.ModTime()) > stale
	}
	return false
}

func infoFile(lockDir string) string {
	return filepath.Join(lockDir, "info.json")
}

func readInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseInfo(data)
}

func forceRemove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't remove the lock directory "+dir,
			"Check the permissions and remove it by hand.")
	}
	return nil
}
