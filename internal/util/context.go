package util

import (
	"context"

	"github.com/spf13/afero"
)

// envKey is the context key for Env.
type envKey struct{}

// WithEnv returns a new context carrying env.
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// GetEnv returns the Env from context, or nil if not set.
func GetEnv(ctx context.Context) *Env {
	if env, ok := ctx.Value(envKey{}).(*Env); ok {
		return env
	}
	return nil
}

// EnvFrom returns the Env from context, falling back to the OS environment.
func EnvFrom(ctx context.Context) *Env {
	if env := GetEnv(ctx); env != nil {
		return env
	}
	return NewEnv(afero.NewOsFs())
}
