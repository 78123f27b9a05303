package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/live"
	"github.com/bolasblack/medbuddy/internal/watch"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live change feed and sync in the background",
	Long: `Serve a websocket feed for UIs and sync periodically until interrupted.

GET /ws streams {"type":"changed"|"status","timestamp":...,"data":...}
messages; GET /status returns the sync status. Changes made by other
medbuddy commands sharing the data directory are picked up and announced.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(cmd, func(_ context.Context, a *app) error {
		addr := serveAddr
		if addr == "" {
			addr = a.settings.Serve.Addr
		}

		feed := live.NewServer(a.svc.SyncStatus, a.logger.Named("live"))
		unsubscribe := a.svc.Subscribe(feed.Notify)
		defer unsubscribe()
		if err := feed.Start(addr); err != nil {
			return err
		}
		defer stopFeed(feed, a.logger)

		w, err := watch.New(a.dataDir, a.store.Notifier().Publish, watch.WithLogger(a.logger.Named("watch")))
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()

		stopPeriodic := a.engine.StartPeriodic(ctx, a.settings.Sync.Interval.Std())
		a.engine.Schedule(ctx)

		progressDone(cmd.OutOrStdout(), "Serving on http://%s (Ctrl-C to stop)\n", feed.Addr())
		<-ctx.Done()

		progressStep(cmd.OutOrStdout(), "Shutting down...\n")
		st := stopPeriodic()
		if st.LastError != "" {
			progressWarn(cmd.OutOrStdout(), "Last sync failed: %s\n", st.LastError)
		}
		return nil
	})
}

func stopFeed(feed *live.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := feed.Stop(ctx); err != nil {
		logger.Warn("feed shutdown", zap.Error(err))
	}
}
