package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/tracker"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write all records to a JSON backup file",
	Long: `Write all records to a JSON backup file. The default name is
medbuddy-backup-YYYY-MM-DD.json in the working directory; "-" writes to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all local records with a JSON backup",
	Long: `Replace all local records with the contents of a backup file, then sync.
The file must hold a "users" array; nothing changes if it is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runExport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		data, err := a.svc.ExportData(ctx)
		if err != nil {
			return err
		}
		path := tracker.ExportFilename(time.Now())
		if len(args) == 1 {
			path = args[0]
		}
		if path == "-" {
			_, err := cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		if err := afero.WriteFile(a.env.Fs, path, data, 0o600); err != nil {
			return fmt.Errorf("failed to write backup: %w", err)
		}
		progressDone(cmd.OutOrStdout(), "Exported to %s\n", path)
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		data, err := afero.ReadFile(a.env.Fs, args[0])
		if err != nil {
			return fmt.Errorf("failed to read backup: %w", err)
		}
		ds, err := a.svc.ImportData(ctx, data)
		if err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Imported %d people, %d fever readings, %d prescriptions\n",
			len(ds.Users), len(ds.FeverLogs), len(ds.Prescriptions))
		return nil
	})
}
