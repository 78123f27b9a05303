package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/bolasblack/medbuddy/internal/transact"
)

// ErrNotFound is returned by Backend.Load when a key has never been written
// or was deleted.
var ErrNotFound = errors.New("key not found")

// Batch maps keys to their new values. A nil value deletes the key.
type Batch map[string][]byte

// Backend is durable key/value storage. Commit applies a whole batch or
// nothing.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Commit(ctx context.Context, batch Batch) error
	Close() error
}

// JournalFile is the redo journal the file backend writes before applying
// a batch.
const JournalFile = "journal.json"

// FileBackend keeps one JSON file per key in a directory.
type FileBackend struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

var _ Backend = (*FileBackend)(nil)

// OpenFileBackend prepares dir and finishes any batch a previous process
// left half-applied.
func OpenFileBackend(fs afero.Fs, dir string) (*FileBackend, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	b := &FileBackend{fs: fs, dir: dir}
	if _, err := transact.ReplayJournal(fs, b.journalPath()); err != nil {
		return nil, fmt.Errorf("failed to recover data directory: %w", err)
	}
	return b, nil
}

// Dir returns the data directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}

func (b *FileBackend) journalPath() string {
	return filepath.Join(b.dir, JournalFile)
}

func (b *FileBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.recoverLocked(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(b.fs, b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Commit applies batch through the journal. When applying fails after the
// journal was written, the batch is finished from the journal before
// returning; if that fails too, the journal stays and every later Load or
// Commit retries it, so no caller ever reads a half-applied batch.
func (b *FileBackend) Commit(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.recoverLocked(); err != nil {
		return err
	}

	keys := make([]string, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tfs := transact.New(transact.WithActualFs(b.fs))
	for _, k := range keys {
		var err error
		if batch[k] == nil {
			err = tfs.Remove(b.path(k))
		} else {
			err = tfs.WriteFile(b.path(k), batch[k], 0o600)
		}
		if err != nil {
			tfs.Rollback()
			return fmt.Errorf("failed to stage %s: %w", k, err)
		}
	}

	if _, err := tfs.Commit(transact.JournaledCommit(b.journalPath())); err != nil {
		replayed, rerr := b.recoverLocked()
		if rerr == nil && replayed > 0 {
			return nil
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// recoverLocked finishes a batch left in the journal. It returns the number
// of ops replayed, zero when there was no journal.
func (b *FileBackend) recoverLocked() (int, error) {
	n, err := transact.ReplayJournal(b.fs, b.journalPath())
	if err != nil {
		return 0, fmt.Errorf("data directory has an unfinished write: %w", err)
	}
	return n, nil
}

func (b *FileBackend) Close() error {
	return nil
}
