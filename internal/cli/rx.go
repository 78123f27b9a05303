package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/model"
)

var (
	rxIllness string
	rxDosage  string
	rxBy      string
	rxNotes   string
	rxAt      string
	rxYes     bool
)

var rxCmd = &cobra.Command{
	Use:     "rx",
	Aliases: []string{"prescription", "prescriptions"},
	Short:   "Manage prescriptions",
}

var rxAddCmd = &cobra.Command{
	Use:   "add <id|name> <medicine>",
	Short: "Add an active prescription",
	Args:  cobra.ExactArgs(2),
	RunE:  runRxAdd,
}

var rxListCmd = &cobra.Command{
	Use:     "list [id|name]",
	Aliases: []string{"ls"},
	Short:   "List prescriptions, newest first",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRxList,
}

var rxSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search by medicine, illness, doctor or person",
	Args:  cobra.ExactArgs(1),
	RunE:  runRxSearch,
}

var rxToggleCmd = &cobra.Command{
	Use:   "toggle <prescription-id>",
	Short: "Mark a prescription active or inactive",
	Args:  cobra.ExactArgs(1),
	RunE:  runRxToggle,
}

var rxRmCmd = &cobra.Command{
	Use:   "rm <prescription-id>",
	Short: "Delete a prescription",
	Args:  cobra.ExactArgs(1),
	RunE:  runRxRm,
}

func init() {
	rxAddCmd.Flags().StringVar(&rxIllness, "illness", "", "what it treats (default General)")
	rxAddCmd.Flags().StringVar(&rxDosage, "dosage", "", "dosage instructions")
	rxAddCmd.Flags().StringVar(&rxBy, "by", "", "prescribing doctor")
	rxAddCmd.Flags().StringVar(&rxNotes, "notes", "", "free-form notes")
	rxAddCmd.Flags().StringVar(&rxAt, "at", "", "prescription date (YYYY-MM-DD, default now)")
	rxRmCmd.Flags().BoolVarP(&rxYes, "yes", "y", false, "delete without asking")

	rxCmd.AddCommand(rxAddCmd)
	rxCmd.AddCommand(rxListCmd)
	rxCmd.AddCommand(rxSearchCmd)
	rxCmd.AddCommand(rxToggleCmd)
	rxCmd.AddCommand(rxRmCmd)
}

func runRxAdd(cmd *cobra.Command, args []string) error {
	at, err := parseWhen(rxAt)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := resolveProfile(ctx, a.svc, args[0])
		if err != nil {
			return err
		}
		rx, err := a.svc.SavePrescription(ctx, model.Prescription{
			UserID:       p.ID,
			MedicineName: args[1],
			Illness:      rxIllness,
			Dosage:       rxDosage,
			PrescribedBy: rxBy,
			Notes:        rxNotes,
			Timestamp:    at,
		})
		if err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Added %s for %s (%s, id %s)\n", rx.MedicineName, p.Name, rx.Illness, rx.ID)
		return nil
	})
}

func runRxList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		var list []model.Prescription
		var err error
		if len(args) == 1 {
			p, perr := resolveProfile(ctx, a.svc, args[0])
			if perr != nil {
				return perr
			}
			list, err = a.svc.PrescriptionsFor(ctx, p.ID)
		} else {
			list, err = a.svc.Prescriptions(ctx)
		}
		if err != nil {
			return err
		}
		return printPrescriptionList(ctx, cmd, a, list)
	})
}

func runRxSearch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		list, err := a.svc.SearchPrescriptions(ctx, args[0])
		if err != nil {
			return err
		}
		return printPrescriptionList(ctx, cmd, a, list)
	})
}

func printPrescriptionList(ctx context.Context, cmd *cobra.Command, a *app, list []model.Prescription) error {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No prescriptions.")
		return nil
	}
	users, err := a.svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	printPrescriptions(cmd.OutOrStdout(), list, profileNames(users))
	return nil
}

func runRxToggle(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		rx, err := a.svc.TogglePrescription(ctx, args[0])
		if err != nil {
			return err
		}
		state := "inactive"
		if rx.IsActive {
			state = "active"
		}
		progressDone(cmd.OutOrStdout(), "%s is now %s\n", rx.MedicineName, state)
		return nil
	})
}

func runRxRm(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		ok, err := confirmDelete(cmd, rxYes, "prescription "+args[0])
		if err != nil || !ok {
			return err
		}
		if err := a.svc.DeletePrescription(ctx, args[0]); err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Deleted prescription %s\n", args[0])
		return nil
	})
}
