package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/util"
)

var (
	// Version, Commit, and Date are set at build time via ldflags
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var rootCmd = &cobra.Command{
	Use:   "medbuddy",
	Short: "medbuddy - household health records that sync",
	Long: `medbuddy keeps a household's health records: people, fever readings
and prescriptions.

Records live on this machine and work offline. Configure a remote (a JSON
file in a GitHub repository or an S3 bucket) to keep several devices in sync.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var homeFlag string

func Execute() {
	ctx := util.WithEnv(context.Background(), util.NewEnv(afero.NewOsFs()))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for documentation generation.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate(versionText())
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "medbuddy home directory (default $MEDBUDDY_HOME or ~/.medbuddy)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(feverCmd)
	rootCmd.AddCommand(rxCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func versionText() string {
	return fmt.Sprintf("medbuddy version %s\ncommit: %s\ndate: %s\n", Version, Commit, Date)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), versionText())
		return err
	},
}
