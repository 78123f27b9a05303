package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/tracker"
)

var (
	profileType string
	profileYes  bool
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Aliases: []string{"profiles"},
	Short:   "Manage the people whose records are kept",
}

var profileAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a person",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileAdd,
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List people",
	Args:    cobra.NoArgs,
	RunE:    runProfileList,
}

var profileRmCmd = &cobra.Command{
	Use:   "rm <id|name>",
	Short: "Delete a person with all their fever readings and prescriptions",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRm,
}

func init() {
	profileAddCmd.Flags().StringVar(&profileType, "type", string(model.CategoryAdult), "Adult or Kid")
	profileRmCmd.Flags().BoolVarP(&profileYes, "yes", "y", false, "delete without asking")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRmCmd)
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	p := model.Profile{Type: model.Category(profileType)}
	if len(args) == 1 {
		p.Name = args[0]
	}
	if p.Name == "" {
		if !interactive(cmd) {
			return fmt.Errorf("a name is required")
		}
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Name").Value(&p.Name).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("name is required")
				}
				return nil
			}),
			huh.NewSelect[model.Category]().
				Title("Type").
				Options(
					huh.NewOption("Adult", model.CategoryAdult),
					huh.NewOption("Kid", model.CategoryKid),
				).
				Value(&p.Type),
		)).Run()
		if err != nil {
			return fmt.Errorf("profile entry cancelled: %w", err)
		}
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		saved, err := a.svc.SaveUser(ctx, p)
		if err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Added %s (%s) with id %s\n", saved.Name, saved.Type, saved.ID)
		return nil
	})
}

func runProfileList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		users, err := a.svc.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No people yet. Run 'medbuddy profile add'.")
			return nil
		}
		printProfiles(cmd.OutOrStdout(), users)
		return nil
	})
}

func runProfileRm(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := resolveProfile(ctx, a.svc, args[0])
		if err != nil {
			return err
		}
		ok, err := confirmDelete(cmd, profileYes, fmt.Sprintf("%s and all their records", p.Name))
		if err != nil || !ok {
			return err
		}
		if err := a.svc.DeleteUser(ctx, p.ID); err != nil {
			return err
		}
		progressDone(cmd.OutOrStdout(), "Deleted %s\n", p.Name)
		return nil
	})
}

// resolveProfile finds a profile by exact id, or by a unique
// case-insensitive name.
func resolveProfile(ctx context.Context, svc *tracker.Service, ref string) (model.Profile, error) {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	var matches []model.Profile
	for _, u := range users {
		if u.ID == ref {
			return u, nil
		}
		if strings.EqualFold(u.Name, ref) {
			matches = append(matches, u)
		}
	}
	switch len(matches) {
	case 0:
		return model.Profile{}, fmt.Errorf("profile %q: %w", ref, tracker.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.Profile{}, fmt.Errorf("%d people are named %q: use the id", len(matches), ref)
	}
}
