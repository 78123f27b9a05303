package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/engine"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync local records with the remote",
	Long: `Pull the remote file, merge it with local records (local edits win for the
same record), and push the result.

Without --force a sync already running in this process is reused; with
--force a fresh attempt always runs.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the remote and local record counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false, "run a new sync attempt even if one is in flight")
}

func runSync(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cfg, err := a.svc.SyncConfig(ctx)
		if err != nil {
			return err
		}
		if cfg == nil {
			return errors.New(ErrMsgNoRemote)
		}

		progressStep(cmd.OutOrStdout(), "Syncing with %s...\n", cfg)
		st := a.svc.SyncFromCloud(ctx, syncForce)
		if !syncForce {
			a.svc.WaitForSync()
			st = a.svc.SyncStatus()
		}
		return reportSync(cmd, st)
	})
}

// reportSync prints the outcome of a sync and turns a failure into an error.
func reportSync(cmd *cobra.Command, st engine.Status) error {
	switch st.State {
	case engine.StateError:
		progressWarn(cmd.OutOrStdout(), "Sync failed; local changes are kept\n")
		return fmt.Errorf("sync failed: %s", st.LastError)
	case engine.StateIdle:
		if !st.LastSyncAt.IsZero() {
			progressDone(cmd.OutOrStdout(), "Synced\n")
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cfg, err := a.svc.SyncConfig(ctx)
		if err != nil {
			return err
		}
		ds, err := a.svc.Snapshot(ctx)
		if err != nil {
			return err
		}
		renderStatus(cmd.OutOrStdout(), a.svc.SyncStatus(), cfg, ds)
		return nil
	})
}
