package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/model"
)

var (
	feverNotes string
	feverAt    string
	feverYes   bool
)

var feverCmd = &cobra.Command{
	Use:   "fever",
	Short: "Record and review temperature readings",
}

var feverLogCmd = &cobra.Command{
	Use:   "log <id|name> <temperature>",
	Short: "Record a temperature reading in °F",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeverLog,
}

var feverListCmd = &cobra.Command{
	Use:     "list [id|name]",
	Aliases: []string{"ls"},
	Short:   "List readings, newest first",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runFeverList,
}

var feverRmCmd = &cobra.Command{
	Use:   "rm <reading-id>",
	Short: "Delete a reading",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeverRm,
}

var feverSummaryCmd = &cobra.Command{
	Use:   "summary <id|name>",
	Short: "Show the latest and peak readings of a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeverSummary,
}

func init() {
	feverLogCmd.Flags().StringVar(&feverNotes, "notes", "", "free-form notes")
	feverLogCmd.Flags().StringVar(&feverAt, "at", "", "when the reading was taken (YYYY-MM-DD HH:MM, default now)")
	feverRmCmd.Flags().BoolVarP(&feverYes, "yes", "y", false, "delete without asking")

	feverCmd.AddCommand(feverLogCmd)
	feverCmd.AddCommand(feverListCmd)
	feverCmd.AddCommand(feverRmCmd)
	feverCmd.AddCommand(feverSummaryCmd)
}

// parseWhen parses --at in local time; empty means "let the service decide".
func parseWhen(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q: use YYYY-MM-DD HH:MM", s)
}

func runFeverLog(cmd *cobra.Command, args []string) error {
	temp, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid temperature %q", args[1])
	}
	at, err := parseWhen(feverAt)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := resolveProfile(ctx, a.svc, args[0])
		if err != nil {
			return err
		}
		r, err := a.svc.SaveFeverRecord(ctx, model.FeverRecord{
			UserID:      p.ID,
			Temperature: temp,
			Timestamp:   at,
			Notes:       feverNotes,
		})
		if err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Recorded %.1f°F for %s (id %s)\n", r.Temperature, p.Name, r.ID)
		return nil
	})
}

func runFeverList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		users, err := a.svc.ListUsers(ctx)
		if err != nil {
			return err
		}
		var records []model.FeverRecord
		if len(args) == 1 {
			p, err := resolveProfile(ctx, a.svc, args[0])
			if err != nil {
				return err
			}
			records, err = a.svc.FeverRecords(ctx, p.ID)
			if err != nil {
				return err
			}
		} else if records, err = a.svc.AllFeverRecords(ctx); err != nil {
			return err
		}
		if len(records) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No fever readings.")
			return nil
		}
		printFevers(cmd.OutOrStdout(), records, profileNames(users))
		return nil
	})
}

func runFeverRm(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ok, err := confirmDelete(cmd, feverYes, "reading "+args[0])
		if err != nil || !ok {
			return err
		}
		if err := a.svc.DeleteFeverRecord(ctx, args[0]); err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Deleted reading %s\n", args[0])
		return nil
	})
}

func runFeverSummary(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := resolveProfile(ctx, a.svc, args[0])
		if err != nil {
			return err
		}
		summary, err := a.svc.FeverSummary(ctx, p.ID)
		if err != nil {
			return err
		}
		printFeverSummary(cmd.OutOrStdout(), p.Name, summary)
		return nil
	})
}
