package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
)

func newSubjectsCmd(o *options) *cobra.Command {
	list := withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
		totals := stats.BySubject(a.repo.Entries(), a.repo.Subjects())
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tCOLOR\tGOAL\tTOTAL\tSESSIONS")
		for _, t := range totals {
			goal := "-"
			if t.GoalSeconds > 0 {
				goal = fmt.Sprintf("%s (%.0f%%)", stats.Human(t.GoalSeconds), t.Progress*100)
			}
			id := string(t.Subject.ID)
			if id == "" {
				id = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				id, t.Subject.Name, t.Subject.Color, goal, stats.Human(t.Seconds), t.Count)
		}
		return w.Flush()
	})

	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Manage subjects",
		Args:  cobra.NoArgs,
		RunE:  list,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List subjects with their totals",
		Args:  cobra.NoArgs,
		RunE:  list,
	})
	cmd.AddCommand(newSubjectAddCmd(o), newSubjectEditCmd(o), newSubjectDeleteCmd(o))
	return cmd
}

func validateColor(c string) error {
	if c == "" || slices.Contains(model.Colors, c) {
		return nil
	}
	return fmt.Errorf("unknown color %q (choose from %s)", c, strings.Join(model.Colors, ", "))
}

func newSubjectAddCmd(o *options) *cobra.Command {
	var (
		color string
		goal  int
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a subject",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			if err := validateColor(color); err != nil {
				return err
			}
			s, err := a.repo.AddSubject(model.Subject{Name: args[0], Color: color, GoalMinutes: goal})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Added %s (%s)\n", s.Name, s.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&color, "color", "", "palette color (default: next in palette)")
	cmd.Flags().IntVar(&goal, "goal", 0, "total goal in minutes (0 for none)")
	return cmd
}

func newSubjectEditCmd(o *options) *cobra.Command {
	var (
		name  string
		color string
		goal  int
	)
	cmd := &cobra.Command{
		Use:   "edit <subject>",
		Short: "Rename or recolor a subject, or change its goal",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			s, err := resolveSubject(a.repo.Subjects(), args[0])
			if err != nil {
				return err
			}
			patch := model.SubjectPatch{ID: s.ID}
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("color") {
				if err := validateColor(color); err != nil {
					return err
				}
				patch.Color = &color
			}
			if flags.Changed("goal") {
				patch.GoalMinutes = &goal
			}
			if _, err := a.repo.UpdateSubject(patch); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Updated %s\n", s.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&color, "color", "", "palette color")
	cmd.Flags().IntVar(&goal, "goal", 0, "total goal in minutes (0 for none)")
	return cmd
}

func newSubjectDeleteCmd(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <subject>",
		Short: "Delete a subject; its sessions are kept as Unknown",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			s, err := resolveSubject(a.repo.Subjects(), args[0])
			if err != nil {
				return err
			}
			count := len(stats.FilterSessions(a.repo.Entries(), nil, stats.Filter{SubjectID: s.ID}))
			question := fmt.Sprintf("Delete subject %s? Its %d sessions will show as %s.", s.Name, count, stats.UnknownSubject)
			if err := a.confirmOrAbort(yes, question); err != nil {
				return err
			}
			if err := a.repo.DeleteSubject(s.ID); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Deleted %s\n", s.Name)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
