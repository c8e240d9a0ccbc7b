package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/config"
	"github.com/sadopc/lernzeit/internal/model"
)

func newSettingsCmd(o *options) *cobra.Command {
	show := withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
		printSettings(cmd.OutOrStdout(), a.repo.Settings())
		return nil
	})

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change goals and appearance",
		Args:  cobra.NoArgs,
		RunE:  show,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show settings",
		Args:  cobra.NoArgs,
		RunE:  show,
	})

	var (
		dailyGoal int
		days      int
		darkMode  bool
	)
	set := &cobra.Command{
		Use:     "set",
		Short:   "Change settings",
		Example: "  lernzeit settings set --daily-goal 90 --days 6",
		Args:    cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			var patch model.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("daily-goal") {
				patch.DailyGoalMinutes = &dailyGoal
			}
			if flags.Changed("days") {
				patch.LearningDaysPerWeek = &days
			}
			if flags.Changed("dark-mode") {
				patch.DarkMode = &darkMode
			}
			s, err := a.repo.UpdateSettings(patch)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s)
			return nil
		}),
	}
	set.Flags().IntVar(&dailyGoal, "daily-goal", model.DefaultDailyGoalMinutes, "daily goal in minutes")
	set.Flags().IntVar(&days, "days", model.DefaultLearningDaysPerWeek, "learning days per week (1-7)")
	set.Flags().BoolVar(&darkMode, "dark-mode", true, "use the dark theme")
	cmd.AddCommand(set)
	return cmd
}

func printSettings(w io.Writer, s model.Settings) {
	printf(w, "daily goal:     %d min\n", s.DailyGoalMinutes)
	printf(w, "learning days:  %d per week\n", s.LearningDaysPerWeek)
	printf(w, "dark mode:      %t\n", s.DarkMode)
}

func newResetCmd(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all sessions and restore default subjects and settings",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			question := fmt.Sprintf("Delete all %d sessions and reset subjects and settings?", len(a.repo.Entries()))
			if err := a.confirmOrAbort(yes, question); err != nil {
				return err
			}
			if err := a.repo.Reset(); err != nil {
				return err
			}
			a.log.Info("data reset")
			printf(cmd.OutOrStdout(), "All data reset\n")
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, sources, err := config.Load(cmd.Flags(), o.env)
			if err != nil {
				return err
			}
			out, err := config.Format(cfg)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", out)
			if sources.Global != "" {
				printf(cmd.ErrOrStderr(), "# global: %s\n", sources.Global)
			}
			if sources.Explicit != "" {
				printf(cmd.ErrOrStderr(), "# explicit: %s\n", sources.Explicit)
			}
			return nil
		},
	}
}
