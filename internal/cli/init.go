// Package cli implements the medbuddy command-line interface.
package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/settings"
	"github.com/bolasblack/medbuddy/internal/transact"
	"github.com/bolasblack/medbuddy/internal/util"
)

var (
	initDataDir string
	initBackend string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the medbuddy settings file and data directory",
	Long: `Create medbuddy.toml in the medbuddy home directory with default settings,
and the data directory it points to.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "", "data directory (default <home>/data)")
	initCmd.Flags().StringVar(&initBackend, "backend", "", "local backend: file or sqlite")
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	env := util.EnvFrom(cmd.Context())
	home, err := resolveHome(env)
	if err != nil {
		return err
	}
	path := settings.Path(home)
	if _, err := env.Fs.Stat(path); err == nil {
		return fmt.Errorf("settings file already exists: %s", path)
	}

	backend := settings.BackendType(initBackend)
	if backend == "" && interactive(cmd) {
		err := huh.NewSelect[settings.BackendType]().
			Title("Where should records be stored locally?").
			Options(
				huh.NewOption("JSON files - one file per collection", settings.BackendFile),
				huh.NewOption("SQLite - a single database file", settings.BackendSQLite),
			).
			Value(&backend).
			Run()
		if err != nil {
			return fmt.Errorf("backend selection cancelled: %w", err)
		}
	}

	content, err := settings.Generate(initDataDir, backend)
	if err != nil {
		return fmt.Errorf("failed to generate settings: %w", err)
	}
	s := settings.DefaultSettings()
	s.DataDir = initDataDir
	if backend != "" {
		s.Backend = backend
	}
	if err := s.Validate(); err != nil {
		return err
	}
	dataDir := s.ResolveDataDir(home)

	tfs := transact.New(transact.WithActualFs(env.Fs))
	if err := tfs.WriteFile(path, []byte(content), 0o600); err != nil {
		return err
	}
	if _, err := tfs.Commit(func(c transact.CommitContext) error {
		return transact.ExecuteOps(c.BaseFs, c.Ops)
	}); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := env.Fs.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	progressDone(out, "Created %s\n", path)
	progressDone(out, "Data directory: %s\n", dataDir)
	_, _ = fmt.Fprintln(out, "Run 'medbuddy remote set' to sync with other devices.")
	return nil
}
