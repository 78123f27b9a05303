package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/engine"
	"github.com/bolasblack/medbuddy/internal/logging"
	"github.com/bolasblack/medbuddy/internal/remote"
	"github.com/bolasblack/medbuddy/internal/settings"
	"github.com/bolasblack/medbuddy/internal/store"
	"github.com/bolasblack/medbuddy/internal/tracker"
	"github.com/bolasblack/medbuddy/internal/util"
)

// Common error messages for CLI commands.
const (
	ErrMsgNoRemote       = "no remote configured: run 'medbuddy remote set' first"
	ErrMsgNeedsYes       = "refusing to delete without confirmation: pass --yes"
	ErrMsgUnknownBackend = "unknown backend %q in settings"
)

// newRemoteFactory builds the adapter factory; tests swap it for an
// in-memory remote.
var newRemoteFactory = remote.NewFactory

// app wires the services one command needs.
type app struct {
	env      *util.Env
	home     string
	dataDir  string
	settings settings.Settings
	logger   *zap.Logger
	store    *store.Store
	engine   *engine.Engine
	svc      *tracker.Service

	closeLog func() error
}

// resolveHome returns the --home flag, $MEDBUDDY_HOME, or ~/.medbuddy.
func resolveHome(env *util.Env) (string, error) {
	if homeFlag != "" {
		return homeFlag, nil
	}
	return settings.Home(env)
}

// loadSettings loads .env from the working directory and the settings file.
func loadSettings(env *util.Env) (string, settings.Settings, error) {
	if _, err := settings.LoadDotEnv(env, util.DotEnvFile); err != nil {
		return "", settings.Settings{}, err
	}
	home, err := resolveHome(env)
	if err != nil {
		return "", settings.Settings{}, err
	}
	s, err := settings.Load(env, settings.Path(home))
	if err != nil {
		return "", settings.Settings{}, err
	}
	return home, s, nil
}

// openApp loads settings and opens the store, engine and service.
func openApp(cmd *cobra.Command) (*app, error) {
	env := util.EnvFrom(cmd.Context())
	home, s, err := loadSettings(env)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(s.Log)
	if err != nil {
		return nil, err
	}
	a := &app{env: env, home: home, settings: s, logger: logger, closeLog: closeLog}
	a.dataDir = s.ResolveDataDir(home)

	if err := env.Fs.MkdirAll(a.dataDir, 0o700); err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	backend, err := a.openBackend()
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	a.store = store.New(backend, nil, logger.Named("store"),
		store.WithProcessLock(filepath.Join(a.dataDir, util.LockFile)))
	factory := newRemoteFactory(remote.Options{
		Timeout: s.Sync.Timeout.Std(),
		Logger:  logger.Named("remote"),
	})
	a.engine = engine.New(a.store, factory,
		engine.WithLogger(logger.Named("engine")),
		engine.WithTimeout(s.Sync.Timeout.Std()))
	a.svc = tracker.New(a.store, a.engine, tracker.WithLogger(logger.Named("tracker")))
	return a, nil
}

func (a *app) openBackend() (store.Backend, error) {
	switch a.settings.Backend {
	case settings.BackendFile:
		return store.OpenFileBackend(a.env.Fs, a.dataDir)
	case settings.BackendSQLite:
		return store.OpenSQLiteBackend(filepath.Join(a.dataDir, store.SQLiteFile))
	default:
		return nil, fmt.Errorf(ErrMsgUnknownBackend, a.settings.Backend)
	}
}

// Close waits for background sync attempts, then releases everything.
func (a *app) Close() error {
	a.svc.WaitForSync()
	err := a.store.Close()
	if cerr := a.closeLog(); err == nil {
		err = cerr
	}
	return err
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(cmd.Context(), a)
}

// interactive reports whether prompts can be shown.
func interactive(cmd *cobra.Command) bool {
	return util.Interactive(cmd.InOrStdin(), cmd.OutOrStdout())
}

// confirmDelete asks before a destructive command. Without a terminal the
// caller must pass --yes.
func confirmDelete(cmd *cobra.Command, yes bool, what string) (bool, error) {
	if yes {
		return true, nil
	}
	if !interactive(cmd) {
		return false, errors.New(ErrMsgNeedsYes)
	}
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Delete %s?", what)).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return ok, nil
}

// Progress writers; a nil writer is quiet mode.
var (
	progress     = util.Reporter(util.MarkNone)
	progressStep = util.Reporter(util.MarkStep)
	progressDone = util.Reporter(util.MarkDone)
	progressWarn = util.Reporter(util.MarkWarn)
)
