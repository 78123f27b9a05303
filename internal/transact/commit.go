package transact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// tmpSuffix marks the sibling file an op is written to before the rename.
const tmpSuffix = ".tmp"

// ExecuteOp executes a single file operation on the given filesystem.
// Writes go to a temporary sibling first and are renamed into place, so a
// reader never observes a partially written file.
func ExecuteOp(fs afero.Fs, op FileOp) error {
	switch op.Op {
	case OpCreate, OpUpdate:
		if err := fs.MkdirAll(parentDir(op.Path), 0o755); err != nil {
			return err
		}
		mode := op.Mode
		if mode == 0 {
			mode = 0o644
		}
		tmp := op.Path + tmpSuffix
		if err := afero.WriteFile(fs, tmp, op.Content, mode); err != nil {
			return err
		}
		if err := fs.Rename(tmp, op.Path); err != nil {
			_ = fs.Remove(tmp)
			return err
		}
		return nil

	case OpDelete:
		if err := fs.Remove(op.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil

	default:
		return fmt.Errorf("unknown operation type: %d", op.Op)
	}
}

// ExecuteOps executes multiple file operations on the given filesystem.
func ExecuteOps(fs afero.Fs, ops []FileOp) error {
	for _, op := range ops {
		if err := ExecuteOp(fs, op); err != nil {
			return fmt.Errorf("failed to execute %s on %s: %w", op.Op, op.Path, err)
		}
	}
	return nil
}

// ErrJournalPending is returned by a journaled commit while an earlier batch
// has not been finished by ReplayJournal.
var ErrJournalPending = errors.New("unfinished batch journal present")

// journal is the on-disk record of a batch that is being applied.
type journal struct {
	Ops []FileOp `json:"ops"`
}

// JournaledCommit returns a CommitFunc that records ops in a redo journal at
// journalPath before applying them, and removes the journal once every op has
// been applied. If an op fails or the process dies in between, the journal
// stays and ReplayJournal finishes the batch. A new batch is refused while a
// journal is present, so an unfinished one is never overwritten.
func JournaledCommit(journalPath string) CommitFunc {
	return func(ctx CommitContext) error {
		if ok, err := afero.Exists(ctx.BaseFs, journalPath); err != nil {
			return fmt.Errorf("failed to check journal: %w", err)
		} else if ok {
			return fmt.Errorf("%w: %s", ErrJournalPending, journalPath)
		}
		data, err := json.Marshal(journal{Ops: ctx.Ops})
		if err != nil {
			return fmt.Errorf("failed to encode journal: %w", err)
		}
		if err := ExecuteOp(ctx.BaseFs, FileOp{Path: journalPath, Op: OpCreate, Content: data, Mode: 0o600}); err != nil {
			return fmt.Errorf("failed to write journal: %w", err)
		}
		if err := ExecuteOps(ctx.BaseFs, ctx.Ops); err != nil {
			return err
		}
		if err := ctx.BaseFs.Remove(journalPath); err != nil {
			return fmt.Errorf("failed to remove journal: %w", err)
		}
		return nil
	}
}

// ReplayJournal re-applies a journal left behind by an interrupted commit.
// It returns the number of ops replayed; zero with a nil error means there
// was no journal.
func ReplayJournal(fs afero.Fs, journalPath string) (int, error) {
	data, err := afero.ReadFile(fs, journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read journal: %w", err)
	}

	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		// The journal itself is written by rename, so a torn journal means
		// the batch never started.
		_ = fs.Remove(journalPath)
		return 0, nil
	}
	if err := ExecuteOps(fs, j.Ops); err != nil {
		return 0, fmt.Errorf("failed to replay journal: %w", err)
	}
	if err := fs.Remove(journalPath); err != nil {
		return 0, fmt.Errorf("failed to remove journal: %w", err)
	}
	return len(j.Ops), nil
}
