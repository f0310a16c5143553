package lock

import "errors"

// ErrLocked is returned by TryAcquire when another invocation holds the
// lock. Check for it with errors.Is().
var ErrLocked = errors.New("lock is held by another process")
