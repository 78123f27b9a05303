package util

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	tests := []struct {
		name string
		mark Mark
		want string
	}{
		{name: "plain", mark: MarkNone, want: "syncing me/health\n"},
		{name: "step", mark: MarkStep, want: "→ syncing me/health\n"},
		{name: "done", mark: MarkDone, want: "✓ syncing me/health\n"},
		{name: "warn", mark: MarkWarn, want: "! syncing me/health\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Report(&buf, tt.mark, "syncing %s\n", "me/health")
			assert.Equal(t, tt.want, buf.String(), "non-terminal output carries no color")
		})
	}
}

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	warn := Reporter(MarkWarn)
	warn(&buf, "%d%% offline\n", 100)
	assert.Equal(t, "! 100% offline\n", buf.String())

	// nil writer is quiet mode
	assert.NotPanics(t, func() { warn(nil, "ignored") })
}

func TestTestEnv(t *testing.T) {
	env := NewTestEnv(map[string]string{EnvToken: "abc"})
	assert.Equal(t, "abc", env.Getenv(EnvToken))
	assert.Equal(t, "", env.Getenv(EnvHome))

	require.NoError(t, env.Setenv(EnvHome, "/srv/medbuddy"))
	v, ok := env.LookupEnv(EnvHome)
	assert.True(t, ok)
	assert.Equal(t, "/srv/medbuddy", v)

	home, err := env.HomeDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/test", home)
}

func TestEnvContext(t *testing.T) {
	assert.Nil(t, GetEnv(context.Background()))
	assert.NotNil(t, EnvFrom(context.Background()))

	env := NewTestEnv(nil)
	ctx := WithEnv(context.Background(), env)
	assert.Same(t, env, GetEnv(ctx))
	assert.Same(t, env, EnvFrom(ctx))
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
	assert.False(t, Interactive(&bytes.Buffer{}, &bytes.Buffer{}))
}
