package settings

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolasblack/medbuddy/internal/util"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	env := util.NewTestEnv(nil)
	s, err := Load(env, "/nonexistent/medbuddy.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoad(t *testing.T) {
	content := `
data_dir = "/srv/health"
backend = "sqlite"

[sync]
timeout = "30s"

[log]
level = "debug"
file = "/var/log/medbuddy.log"
`
	env := util.NewTestEnv(nil)
	require.NoError(t, afero.WriteFile(env.Fs, "/h/medbuddy.toml", []byte(content), 0o644))

	s, err := Load(env, "/h/medbuddy.toml")
	require.NoError(t, err)

	if s.Backend != BackendSQLite {
		t.Errorf("expected backend sqlite, got %q", s.Backend)
	}
	if s.Sync.Timeout.Std() != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", s.Sync.Timeout.Std())
	}
	if s.Sync.Interval.Std() != DefaultInterval {
		t.Errorf("expected default interval, got %v", s.Sync.Interval.Std())
	}
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "console", s.Log.Format)
	assert.Equal(t, "/var/log/medbuddy.log", s.Log.File)
	assert.Equal(t, DefaultAddr, s.Serve.Addr)
	assert.Equal(t, "/srv/health", s.ResolveDataDir("/h"))
}

func TestLoad_ExplicitZeroIntervalIsKept(t *testing.T) {
	env := util.NewTestEnv(nil)
	require.NoError(t, afero.WriteFile(env.Fs, "/h/medbuddy.toml", []byte("[sync]\ninterval = \"0s\"\n"), 0o644))

	s, err := Load(env, "/h/medbuddy.toml")
	require.NoError(t, err)
	assert.Zero(t, s.Sync.Interval)
	assert.Equal(t, Duration(DefaultTimeout), s.Sync.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown backend", `backend = "postgres"`, "unknown backend"},
		{"bad level", "[log]\nlevel = \"loud\"", "unknown log level"},
		{"bad format", "[log]\nformat = \"xml\"", "unknown log format"},
		{"bad duration", "[sync]\ntimeout = \"soon\"", "failed to parse"},
		{"negative duration", "[sync]\ntimeout = \"-1s\"", "failed to parse"},
		{"unknown key", `colour = "blue"`, "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := util.NewTestEnv(nil)
			require.NoError(t, afero.WriteFile(env.Fs, "/h/medbuddy.toml", []byte(tt.content), 0o644))
			_, err := Load(env, "/h/medbuddy.toml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	env := util.NewTestEnv(nil)
	want := DefaultSettings()
	want.Backend = BackendSQLite
	want.Sync.Interval = Duration(time.Minute)

	require.NoError(t, Save(env, "/h/medbuddy.toml", want))

	data, err := afero.ReadFile(env.Fs, "/h/medbuddy.toml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), SchemaComment))
	assert.Contains(t, string(data), "interval = '1m0s'")

	got, err := Load(env, "/h/medbuddy.toml")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHome(t *testing.T) {
	env := util.NewTestEnv(nil)
	home, err := Home(env)
	require.NoError(t, err)
	assert.Equal(t, "/home/test/.medbuddy", home)
	assert.Equal(t, "/home/test/.medbuddy/medbuddy.toml", Path(home))

	env = util.NewTestEnv(map[string]string{util.EnvHome: "/srv/mb"})
	home, err = Home(env)
	require.NoError(t, err)
	assert.Equal(t, "/srv/mb", home)
}

func TestResolveDataDir(t *testing.T) {
	tests := []struct {
		dataDir string
		want    string
	}{
		{"", "/h/data"},
		{"/abs/data", "/abs/data"},
		{"local", "/h/local"},
	}
	for _, tt := range tests {
		s := Settings{DataDir: tt.dataDir}
		if got := s.ResolveDataDir("/h"); got != tt.want {
			t.Errorf("ResolveDataDir(%q) = %q, want %q", tt.dataDir, got, tt.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	content, err := Generate("", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, SchemaComment))
	assert.Contains(t, content, "# background sync interval for medbuddy serve, 0s disables it\ninterval = ")
	assert.Contains(t, content, "backend = 'file'")
	assert.NotContains(t, content, "data_dir")

	content, err = Generate("/srv/health", BackendSQLite)
	require.NoError(t, err)
	assert.Contains(t, content, "data_dir = '/srv/health'")

	env := util.NewTestEnv(nil)
	require.NoError(t, afero.WriteFile(env.Fs, "/h/medbuddy.toml", []byte(content), 0o644))
	s, err := Load(env, "/h/medbuddy.toml")
	require.NoError(t, err)
	assert.Equal(t, "/srv/health", s.DataDir)
	assert.Equal(t, BackendSQLite, s.Backend)
}

func TestLoadDotEnv(t *testing.T) {
	env := util.NewTestEnv(map[string]string{"MEDBUDDY_HOME": "/already"})
	dotenv := "MEDBUDDY_TOKEN=ghp_abc\nMEDBUDDY_HOME=/ignored\n# comment\n"
	require.NoError(t, afero.WriteFile(env.Fs, "/work/.env", []byte(dotenv), 0o600))

	set, err := LoadDotEnv(env, "/work/.env")
	require.NoError(t, err)
	assert.Equal(t, []string{util.EnvToken}, set)
	assert.Equal(t, "ghp_abc", Token(env))
	assert.Equal(t, "/already", env.Getenv(util.EnvHome))

	set, err = LoadDotEnv(env, "/work/missing.env")
	require.NoError(t, err)
	assert.Empty(t, set)
}
