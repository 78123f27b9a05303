package util

import (
	"os"
	"sync"

	"github.com/spf13/afero"
)

// Env contains environment dependencies that can be mocked for testing.
type Env struct {
	// Fs is the filesystem to use for file operations.
	Fs afero.Fs
	// LookupEnv reads a process environment variable.
	LookupEnv func(key string) (string, bool)
	// Setenv sets a process environment variable.
	Setenv func(key, value string) error
	// HomeDir returns the user's home directory.
	HomeDir func() (string, error)
}

// NewEnv creates an Env with the given filesystem and the real process
// environment.
func NewEnv(fs afero.Fs) *Env {
	return &Env{Fs: fs, LookupEnv: os.LookupEnv, Setenv: os.Setenv, HomeDir: os.UserHomeDir}
}

// NewReadonlyOsEnv creates an Env with a read-only OS filesystem.
// Write operations will fail with an error.
func NewReadonlyOsEnv() *Env {
	return NewEnv(afero.NewReadOnlyFs(afero.NewOsFs()))
}

// NewTestEnv creates an Env with an in-memory filesystem, a private variable
// table seeded from vars, and "/home/test" as the home directory.
func NewTestEnv(vars map[string]string) *Env {
	table := &envTable{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		table.vars[k] = v
	}
	return &Env{
		Fs:        afero.NewMemMapFs(),
		LookupEnv: table.lookup,
		Setenv:    table.set,
		HomeDir:   func() (string, error) { return "/home/test", nil },
	}
}

// Getenv returns the variable's value, or "" when unset.
func (e *Env) Getenv(key string) string {
	v, _ := e.LookupEnv(key)
	return v
}

// WithFs returns a copy using fs.
func (e *Env) WithFs(fs afero.Fs) *Env {
	cp := *e
	cp.Fs = fs
	return &cp
}

type envTable struct {
	mu   sync.Mutex
	vars map[string]string
}

func (t *envTable) lookup(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.vars[key]
	return v, ok
}

func (t *envTable) set(key, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vars[key] = value
	return nil
}
