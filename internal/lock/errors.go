package lock

import "errors"

// ErrLocked is returned by Acquire when another process holds the lock.
// Check it with errors.Is().
var ErrLocked = errors.New("lock is held by another process")
