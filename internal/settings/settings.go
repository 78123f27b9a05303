// Package settings handles parsing and writing of the medbuddy settings file
// (medbuddy.toml) and the optional .env file.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/bolasblack/medbuddy/internal/util"
)

// BackendType selects the local persistence backend.
type BackendType string

const (
	// BackendFile stores one JSON file per collection.
	BackendFile BackendType = "file"
	// BackendSQLite stores collections in a single SQLite database.
	BackendSQLite BackendType = "sqlite"
)

// Duration is a time.Duration written as a Go duration string ("15s").
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("duration %q must not be negative", text)
	}
	*d = Duration(v)
	return nil
}

// JSONSchema implements jsonschema.JSONSchemer.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$|^0$`,
		Description: "Go duration string, e.g. 15s or 5m",
	}
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Sync holds sync engine tuning.
type Sync struct {
	Timeout  Duration `toml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Deadline for each remote call"`
	Interval Duration `toml:"interval,omitempty" json:"interval,omitempty" jsonschema:"description=Background sync interval while serving (0 disables)"`
}

// Log holds logger settings.
type Log struct {
	Level      string `toml:"level,omitempty" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,description=Minimum log level"`
	Format     string `toml:"format,omitempty" json:"format,omitempty" jsonschema:"enum=console,enum=json,description=Log encoding"`
	File       string `toml:"file,omitempty" json:"file,omitempty" jsonschema:"description=Write logs to this rotated file instead of stderr"`
	MaxSizeMB  int    `toml:"max_size_mb,omitempty" json:"max_size_mb,omitempty" jsonschema:"description=Rotate the log file after this many megabytes"`
	MaxBackups int    `toml:"max_backups,omitempty" json:"max_backups,omitempty" jsonschema:"description=Rotated log files to keep"`
}

// Serve holds settings for the live change feed.
type Serve struct {
	Addr string `toml:"addr,omitempty" json:"addr,omitempty" jsonschema:"description=Listen address of medbuddy serve"`
}

// Settings is the medbuddy settings file.
type Settings struct {
	DataDir string      `toml:"data_dir,omitempty" json:"data_dir,omitempty" jsonschema:"description=Directory holding local data (defaults to <home>/data)"`
	Backend BackendType `toml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=file,enum=sqlite,description=Local persistence backend"`
	Sync    Sync        `toml:"sync,omitempty" json:"sync,omitempty" jsonschema:"description=Sync engine settings"`
	Log     Log         `toml:"log,omitempty" json:"log,omitempty" jsonschema:"description=Logging settings"`
	Serve   Serve       `toml:"serve,omitempty" json:"serve,omitempty" jsonschema:"description=Live feed settings"`
}

// Default values applied by Load for missing fields.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultInterval   = 5 * time.Minute
	DefaultAddr       = "127.0.0.1:7420"
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
)

// DefaultSettings returns Settings with every default filled in.
func DefaultSettings() Settings {
	return Settings{
		Backend: BackendFile,
		Sync: Sync{
			Timeout:  Duration(DefaultTimeout),
			Interval: Duration(DefaultInterval),
		},
		Log: Log{
			Level:      "warn",
			Format:     "console",
			MaxSizeMB:  DefaultMaxSizeMB,
			MaxBackups: DefaultMaxBackups,
		},
		Serve: Serve{Addr: DefaultAddr},
	}
}

// applyDefaults fills zero fields. An interval explicitly set to 0 is kept.
func (s *Settings) applyDefaults(intervalSet bool) {
	d := DefaultSettings()
	if s.Backend == "" {
		s.Backend = d.Backend
	}
	if s.Sync.Timeout == 0 {
		s.Sync.Timeout = d.Sync.Timeout
	}
	if s.Sync.Interval == 0 && !intervalSet {
		s.Sync.Interval = d.Sync.Interval
	}
	if s.Log.Level == "" {
		s.Log.Level = d.Log.Level
	}
	if s.Log.Format == "" {
		s.Log.Format = d.Log.Format
	}
	if s.Log.MaxSizeMB == 0 {
		s.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = d.Log.MaxBackups
	}
	if s.Serve.Addr == "" {
		s.Serve.Addr = d.Serve.Addr
	}
}

// Validate checks enumerated fields.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q (want file or sqlite)", s.Backend)
	}
	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", s.Log.Level)
	}
	switch s.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", s.Log.Format)
	}
	return nil
}

// Home returns the medbuddy home directory: $MEDBUDDY_HOME, or ~/.medbuddy.
func Home(env *util.Env) (string, error) {
	if home := env.Getenv(util.EnvHome); home != "" {
		return home, nil
	}
	userHome, err := env.HomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(userHome, util.MedbuddyDir), nil
}

// Path returns the settings file path inside home.
func Path(home string) string {
	return filepath.Join(home, util.SettingsFile)
}

// ResolveDataDir returns the data directory, relative paths being taken from
// home.
func (s Settings) ResolveDataDir(home string) string {
	switch {
	case s.DataDir == "":
		return filepath.Join(home, util.DataDir)
	case filepath.IsAbs(s.DataDir):
		return s.DataDir
	default:
		return filepath.Join(home, s.DataDir)
	}
}

// Load reads the settings file at path. A missing file yields the defaults.
func Load(env *util.Env, path string) (Settings, error) {
	data, err := afero.ReadFile(env.Fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var probe struct {
		Sync map[string]any `toml:"sync"`
	}
	_ = toml.Unmarshal(data, &probe)
	_, intervalSet := probe.Sync["interval"]

	s.applyDefaults(intervalSet)
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return s, nil
}

// SchemaComment is the TOML comment that references the JSON Schema for editor autocomplete.
const SchemaComment = "#:schema https://raw.githubusercontent.com/bolasblack/medbuddy/refs/heads/master/medbuddy.schema.json\n\n"

// Save writes s to path with the schema comment header.
func Save(env *util.Env, path string, s Settings) error {
	if err := env.Fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	var buf bytes.Buffer
	buf.WriteString(SchemaComment)
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return afero.WriteFile(env.Fs, path, buf.Bytes(), 0o600)
}
