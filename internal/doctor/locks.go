package doctor

import (
	"fmt"
	"time"

	"github.com/altoplano/appscale-tools/internal/lock"
)

// LockCheck looks for a held deployment lock. A fresh lock means
// another operation is running; one older than the stale threshold is
// probably left over from a crash and can be cleared.
type LockCheck struct {
	LockDir string
	Stale   time.Duration
}

func (c *LockCheck) Name() string     { return "lock_state" }
func (c *LockCheck) Category() string { return "LOCKS" }

func (c *LockCheck) Run() CheckResult {
	if !lock.Held(c.LockDir) {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No deployment lock held",
		}
	}

	holder := lock.Holder(c.LockDir)
	age, known := lock.HeldFor(c.LockDir)

	if known && age > c.Stale {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Stale deployment lock held by %s for %s", holder, formatAge(age)),
			Suggestion: "Clear it with 'appscale clean' or 'appscale fix'.",
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    fmt.Sprintf("Deployment lock held by %s", holder),
		Suggestion: "Another operation may be running. Wait for it to finish.",
	}
}

func (c *LockCheck) Fix() error {
	age, known := lock.HeldFor(c.LockDir)
	if !known || age <= c.Stale {
		return nil // never clear a lock that might be live
	}
	return lock.ForceRelease(c.LockDir)
}

func formatAge(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// NewLockChecks creates the deployment lock checks.
func NewLockChecks(lockDir string, stale time.Duration) []Check {
	return []Check{
		&LockCheck{LockDir: lockDir, Stale: stale},
	}
}
