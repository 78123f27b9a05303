package transact

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// OpType represents the type of file operation.
type OpType int

const (
	// OpCreate indicates a new file creation.
	OpCreate OpType = iota
	// OpUpdate indicates updating an existing file's content.
	OpUpdate
	// OpDelete indicates file deletion.
	OpDelete
)

// String returns a human-readable string for the operation type.
func (o OpType) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MarshalText encodes the op by name so journals stay readable.
func (o OpType) MarshalText() ([]byte, error) {
	if o < OpCreate || o > OpDelete {
		return nil, fmt.Errorf("unknown operation type: %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText decodes an op name written by MarshalText.
func (o *OpType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "create":
		*o = OpCreate
	case "update":
		*o = OpUpdate
	case "delete":
		*o = OpDelete
	default:
		return fmt.Errorf("unknown operation type: %q", text)
	}
	return nil
}

// FileOp represents a single file operation to be committed.
type FileOp struct {
	Path    string      `json:"path"`
	Op      OpType      `json:"op"`
	Content []byte      `json:"content,omitempty"`
	Mode    os.FileMode `json:"mode,omitempty"`
}

// ComputeDiff compares staged vs actual filesystem and returns operations
// needed. Files whose content is unchanged produce no op.
func ComputeDiff(staged, actual afero.Fs, paths, deletedPaths []string) ([]FileOp, error) {
	var ops []FileOp

	for _, path := range paths {
		stagedInfo, stagedErr := staged.Stat(path)
		if stagedErr != nil {
			continue
		}
		content, err := afero.ReadFile(staged, path)
		if err != nil {
			return nil, err
		}

		actualContent, actualErr := afero.ReadFile(actual, path)
		switch {
		case actualErr != nil && os.IsNotExist(actualErr):
			ops = append(ops, FileOp{Path: path, Op: OpCreate, Content: content, Mode: stagedInfo.Mode().Perm()})
		case actualErr != nil:
			return nil, actualErr
		case !bytes.Equal(content, actualContent):
			ops = append(ops, FileOp{Path: path, Op: OpUpdate, Content: content, Mode: stagedInfo.Mode().Perm()})
		}
	}

	for _, path := range deletedPaths {
		if _, err := actual.Stat(path); err == nil {
			ops = append(ops, FileOp{Path: path, Op: OpDelete})
		}
	}

	return ops, nil
}
