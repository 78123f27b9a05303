package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/settings"
)

var (
	remoteProvider string
	remoteRepo     string
	remotePath     string
	remoteToken    string
	remoteBranch   string
	remoteEndpoint string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Configure the remote file records sync with",
}

var remoteSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the remote and sync with it",
	Long: `Set the remote file and sync with it right away.

For GitHub, --repo is owner/name and --token is a personal access token with
contents access. For S3, --repo is the bucket and --token is
ACCESS_KEY_ID:SECRET_ACCESS_KEY (omit it to use the default AWS credentials).

When --token is omitted, $MEDBUDDY_TOKEN is used; it may come from a .env file
in the working directory.`,
	Args: cobra.NoArgs,
	RunE: runRemoteSet,
}

var remoteShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configured remote (token masked)",
	Args:  cobra.NoArgs,
	RunE:  runRemoteShow,
}

var remoteClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Stop syncing; local records are kept",
	Args:  cobra.NoArgs,
	RunE:  runRemoteClear,
}

func init() {
	remoteSetCmd.Flags().StringVar(&remoteProvider, "provider", string(model.ProviderGitHub), "github or s3")
	remoteSetCmd.Flags().StringVar(&remoteRepo, "repo", "", "GitHub owner/name, or S3 bucket")
	remoteSetCmd.Flags().StringVar(&remotePath, "path", "medbuddy.json", "file path inside the repository or bucket")
	remoteSetCmd.Flags().StringVar(&remoteToken, "token", "", "access token (default $MEDBUDDY_TOKEN)")
	remoteSetCmd.Flags().StringVar(&remoteBranch, "branch", "", "GitHub branch (default the repository's default branch)")
	remoteSetCmd.Flags().StringVar(&remoteEndpoint, "endpoint", "", "S3-compatible endpoint URL")

	remoteCmd.AddCommand(remoteSetCmd)
	remoteCmd.AddCommand(remoteShowCmd)
	remoteCmd.AddCommand(remoteClearCmd)
}

func runRemoteSet(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cfg := model.SyncConfig{
			Provider:   model.Provider(remoteProvider),
			Repository: remoteRepo,
			Path:       remotePath,
			Token:      remoteToken,
			Branch:     remoteBranch,
			Endpoint:   remoteEndpoint,
		}
		if cfg.Token == "" {
			cfg.Token = settings.Token(a.env)
		}
		if err := promptMissingRemote(cmd, &cfg); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := a.svc.SaveSyncConfig(ctx, cfg); err != nil {
			return err
		}
		progressDone(out, "Remote set to %s\n", cfg)
		progressStep(out, "Syncing...\n")
		a.svc.WaitForSync()
		return reportSync(cmd, a.svc.SyncStatus())
	})
}

// promptMissingRemote asks for the repository and token when they are
// missing and a terminal is attached.
func promptMissingRemote(cmd *cobra.Command, cfg *model.SyncConfig) error {
	needRepo := cfg.Repository == ""
	needToken := cfg.Token == "" && cfg.EffectiveProvider() == model.ProviderGitHub
	if (!needRepo && !needToken) || !interactive(cmd) {
		return nil
	}
	var fields []huh.Field
	if needRepo {
		fields = append(fields, huh.NewInput().Title("Repository (owner/name) or bucket").Value(&cfg.Repository))
	}
	if needToken {
		fields = append(fields, huh.NewInput().Title("Access token").EchoMode(huh.EchoModePassword).Value(&cfg.Token))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("remote setup cancelled: %w", err)
	}
	return nil
}

func runRemoteShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		cfg, err := a.svc.SyncConfig(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if cfg == nil {
			_, _ = fmt.Fprintln(out, "No remote configured.")
			return nil
		}
		_, _ = fmt.Fprintf(out, "Provider:   %s\n", cfg.EffectiveProvider())
		_, _ = fmt.Fprintf(out, "Repository: %s\n", cfg.Repository)
		_, _ = fmt.Fprintf(out, "Path:       %s\n", cfg.Path)
		if cfg.Branch != "" {
			_, _ = fmt.Fprintf(out, "Branch:     %s\n", cfg.Branch)
		}
		if cfg.Endpoint != "" {
			_, _ = fmt.Fprintf(out, "Endpoint:   %s\n", cfg.Endpoint)
		}
		if cfg.Token != "" {
			_, _ = fmt.Fprintf(out, "Token:      %s\n", cfg.Token)
		}
		return nil
	})
}

func runRemoteClear(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := a.svc.ClearSyncConfig(ctx); err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Remote cleared; local records are kept\n")
		return nil
	})
}
