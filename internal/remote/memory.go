package remote

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bolasblack/medbuddy/internal/model"
)

// Memory is an in-process Adapter with the same revision semantics as the
// real providers. Tests use it in place of a real remote.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	revision int

	fetchCalls int
	writeCalls int
	fetchErr   error
	writeErr   error

	// BeforeWrite, when set, runs at the start of every Write with the call
	// number (1-based), outside the lock. Tests use it to interleave a
	// competing writer.
	BeforeWrite func(call int)
}

var _ Adapter = (*Memory)(nil)

// NewMemory returns an empty remote.
func NewMemory() *Memory {
	return &Memory{}
}

// Seed replaces the remote content as if another device pushed it, and
// returns the new revision.
func (m *Memory) Seed(ds model.Dataset) string {
	data, err := ds.Encode()
	if err != nil {
		panic(err)
	}
	return m.SeedRaw(data)
}

// SeedRaw stores arbitrary bytes, including undecodable ones.
func (m *Memory) SeedRaw(data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte{}, data...)
	m.revision++
	return m.revisionLocked()
}

// Content returns the stored dataset and revision; nil when absent or
// undecodable.
func (m *Memory) Content() (*model.Dataset, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ""
	}
	ds, err := model.DecodeSnapshot(m.data)
	if err != nil {
		return nil, m.revisionLocked()
	}
	return &ds, m.revisionLocked()
}

// FailFetch makes every Fetch return err until called again with nil.
func (m *Memory) FailFetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// FailWrite makes every Write return err until called again with nil.
func (m *Memory) FailWrite(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Calls returns how many times Fetch and Write were invoked.
func (m *Memory) Calls() (fetches, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls, m.writeCalls
}

func (m *Memory) Fetch(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return Snapshot{}, m.fetchErr
	}
	if m.data == nil {
		return Snapshot{}, nil
	}
	content, err := decodeContent(m.data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Content: content, Revision: m.revisionLocked()}, nil
}

func (m *Memory) Write(ctx context.Context, content model.Dataset, expectedRevision string) (string, error) {
	m.mu.Lock()
	m.writeCalls++
	call := m.writeCalls
	hook := m.BeforeWrite
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	data, err := content.Encode()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return "", m.writeErr
	}
	current := ""
	if m.data != nil {
		current = m.revisionLocked()
	}
	if expectedRevision != current {
		return "", fmt.Errorf("%w: expected %q, remote at %q", ErrConflict, expectedRevision, current)
	}
	m.data = data
	m.revision++
	return m.revisionLocked(), nil
}

func (m *Memory) revisionLocked() string {
	return "r" + strconv.Itoa(m.revision)
}
