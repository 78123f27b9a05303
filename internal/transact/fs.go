// Package transact stages file writes in memory, diffs them against the real
// filesystem, and applies the difference in one commit.
package transact

import (
	"os"
	"slices"
	"sync"

	"github.com/spf13/afero"
)

// CommitContext contains all information needed for commit callback.
type CommitContext struct {
	// BaseFs is the actual filesystem to write to.
	BaseFs afero.Fs
	// Ops is the list of operations to perform.
	Ops []FileOp
}

// CommitFunc applies ops to the base filesystem. It must not call back into
// the TransactFs.
type CommitFunc func(ctx CommitContext) error

// TransactFs overlays an in-memory staging area on an actual filesystem.
//
//   - WriteFile/Remove stage changes in memory
//   - ReadFile reads staged first, then actual
//   - Diff compares staged vs actual
//   - Commit hands the diff to a callback, then resets staged on success
type TransactFs struct {
	staged       afero.Fs
	actual       afero.Fs
	paths        []string
	deletedPaths []string
	mu           sync.RWMutex
}

// Option configures a TransactFs.
type Option func(*TransactFs)

// WithActualFs sets the actual filesystem (default: OsFs).
func WithActualFs(fs afero.Fs) Option {
	return func(t *TransactFs) {
		t.actual = fs
	}
}

// New creates a new TransactFs with default OsFs for the actual filesystem.
func New(opts ...Option) *TransactFs {
	t := &TransactFs{
		staged: afero.NewMemMapFs(),
		actual: afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WriteFile stages a file write in memory.
func (t *TransactFs) WriteFile(path string, content []byte, perm os.FileMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deletedPaths = slices.DeleteFunc(t.deletedPaths, func(p string) bool {
		return p == path
	})

	if err := t.staged.MkdirAll(parentDir(path), 0o755); err != nil {
		return err
	}
	if err := afero.WriteFile(t.staged, path, content, perm); err != nil {
		return err
	}
	if !slices.Contains(t.paths, path) {
		t.paths = append(t.paths, path)
	}
	return nil
}

// Remove stages a file deletion.
func (t *TransactFs) Remove(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.staged.Remove(path)
	t.paths = slices.DeleteFunc(t.paths, func(p string) bool {
		return p == path
	})
	if !slices.Contains(t.deletedPaths, path) {
		t.deletedPaths = append(t.deletedPaths, path)
	}
	return nil
}

// ReadFile reads staged content first, then actual.
func (t *TransactFs) ReadFile(path string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if slices.Contains(t.deletedPaths, path) {
		return nil, os.ErrNotExist
	}
	if content, err := afero.ReadFile(t.staged, path); err == nil {
		return content, nil
	}
	return afero.ReadFile(t.actual, path)
}

// NeedsCommit returns true if there are pending changes to commit.
func (t *TransactFs) NeedsCommit() bool {
	ops, err := t.Diff()
	if err != nil {
		return true
	}
	return len(ops) > 0
}

// Diff returns the pending operations needed to sync staged to actual.
func (t *TransactFs) Diff() ([]FileOp, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ComputeDiff(t.staged, t.actual, t.paths, t.deletedPaths)
}

// Commit applies all pending changes via the provided callback.
// On success, staged is reset. On failure, staged is preserved for retry.
// The callback is not invoked when there is nothing to apply.
func (t *TransactFs) Commit(fn CommitFunc) ([]FileOp, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ops, err := ComputeDiff(t.staged, t.actual, t.paths, t.deletedPaths)
	if err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		if err := fn(CommitContext{BaseFs: t.actual, Ops: ops}); err != nil {
			return nil, err
		}
	}
	t.resetLocked()
	return ops, nil
}

// Rollback discards all staged changes.
func (t *TransactFs) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *TransactFs) resetLocked() {
	t.staged = afero.NewMemMapFs()
	t.paths = nil
	t.deletedPaths = nil
}

// parentDir returns the parent directory of a path.
func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}
