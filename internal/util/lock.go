package util

import (
	"errors"
	"fmt"
)

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = errors.New("data directory is in use by another medbuddy process")

// Unlock releases a lock taken by Lock or TryLock.
type Unlock func() error

// Lock takes an exclusive advisory lock on path, blocking until it is free.
func Lock(path string) (Unlock, error) {
	return lockFile(path, true)
}

// TryLock takes the lock without waiting, returning ErrLocked when it is held.
func TryLock(path string) (Unlock, error) {
	unlock, err := lockFile(path, false)
	if err != nil && !errors.Is(err, ErrLocked) {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return unlock, err
}
