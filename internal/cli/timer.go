package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/stats"
	"github.com/sadopc/lernzeit/internal/timer"
)

func newTimerCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Control the study timer",
		Long: `Control the study timer. The timer survives restarts: a running timer
keeps counting while lernzeit is closed.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start <subject>",
		Short: "Start timing a subject (id or name)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			subject, err := resolveSubject(a.repo.Subjects(), args[0])
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			if st := e.State(); st.Status == timer.Paused && st.SubjectID != subject.ID {
				return fmt.Errorf("timer is paused on %s; resume or stop it first",
					stats.SubjectName(a.repo.Subjects(), st.SubjectID))
			}
			if err := e.Start(subject.ID); err != nil {
				if errors.Is(err, timer.ErrInvalidTransition) {
					return fmt.Errorf("timer is already %s; use 'timer status'", e.State().Status)
				}
				return err
			}
			printf(cmd.OutOrStdout(), "Started %s\n", subject.Name)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pause",
		Short: "Pause the running timer",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			if err := e.Pause(); err != nil {
				return transitionError(err, e, "pause")
			}
			printTimer(cmd.OutOrStdout(), a, e.State())
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Resume a paused timer",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			if err := e.Resume(); err != nil {
				return transitionError(err, e, "resume")
			}
			printTimer(cmd.OutOrStdout(), a, e.State())
			return nil
		}),
	})

	var yes bool
	stop := &cobra.Command{
		Use:   "stop",
		Short: "Discard the tracked time and reset the timer",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			st := e.State()
			if st.Status == timer.Idle {
				return transitionError(timer.ErrInvalidTransition, e, "stop")
			}
			confirmed := st.Accumulated == 0
			if !confirmed {
				question := fmt.Sprintf("Discard %s of tracked time?", stats.Clock(st.Accumulated))
				if err := a.confirmOrAbort(yes, question); err != nil {
					return err
				}
				confirmed = true
			}
			if err := e.Stop(confirmed); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Timer stopped, nothing saved\n")
			return nil
		}),
	}
	stop.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(stop)

	var note string
	finish := &cobra.Command{
		Use:   "finish",
		Short: "Save the tracked time as a session",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			session, err := e.Finish(note)
			if err != nil {
				switch {
				case errors.Is(err, timer.ErrNothingToSave):
					return errors.New("nothing to save: no time tracked yet")
				case errors.Is(err, timer.ErrInvalidTransition):
					return transitionError(err, e, "finish")
				}
				return err
			}
			name := stats.SubjectName(a.repo.Subjects(), session.SubjectID)
			printf(cmd.OutOrStdout(), "Saved %s for %s\n", stats.Human(session.Duration), name)
			return nil
		}),
	}
	finish.Flags().StringVarP(&note, "note", "n", "", "note for the session")
	cmd.AddCommand(finish)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the timer",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			printTimer(cmd.OutOrStdout(), a, e.State())
			return nil
		}),
	})

	return cmd
}

func printTimer(w io.Writer, a *app, st timer.State) {
	if st.Status == timer.Idle {
		printf(w, "idle\n")
		return
	}
	name := stats.SubjectName(a.repo.Subjects(), st.SubjectID)
	printf(w, "%s\t%s\t%s\n", st.Status, name, stats.Clock(st.Accumulated))
}

func transitionError(err error, e *timer.Engine, action string) error {
	if errors.Is(err, timer.ErrInvalidTransition) {
		return fmt.Errorf("cannot %s: timer is %s", action, e.State().Status)
	}
	return err
}
