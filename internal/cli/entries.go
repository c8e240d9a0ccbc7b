package cli

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
)

// Accepted --date layouts, interpreted in the configured time zone.
var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or \"YYYY-MM-DD HH:MM\")", s)
}

func minutesToSeconds(m float64) (int64, error) {
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, errors.New("--minutes must be positive")
	}
	return int64(math.Round(m * 60)), nil
}

func newLogCmd(o *options) *cobra.Command {
	var (
		subject string
		minutes float64
		date    string
		note    string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Add a session manually",
		Example: `  lernzeit log --subject Mathe --minutes 45
  lernzeit log --subject 1 --minutes 90 --date "2026-03-10 14:00" --note "Lineare Algebra"`,
		Args: cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			s, err := resolveSubject(a.repo.Subjects(), subject)
			if err != nil {
				return err
			}
			secs, err := minutesToSeconds(minutes)
			if err != nil {
				return err
			}
			// Without --date the session is taken to end now.
			start := a.clock().Add(-time.Duration(secs) * time.Second)
			if date != "" {
				if start, err = parseDate(date, a.loc); err != nil {
					return err
				}
			}
			entry, err := a.repo.AddEntry(model.Session{
				SubjectID: s.ID,
				StartTime: start,
				Duration:  secs,
				Notes:     strings.TrimSpace(note),
			})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Logged %s for %s (%s)\n", stats.Human(entry.Duration), s.Name, entry.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject id or name")
	cmd.Flags().Float64VarP(&minutes, "minutes", "m", 0, "duration in minutes")
	cmd.Flags().StringVarP(&date, "date", "d", "", "start, as YYYY-MM-DD or \"YYYY-MM-DD HH:MM\" (default: ends now)")
	cmd.Flags().StringVarP(&note, "note", "n", "", "note for the session")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func newEntriesCmd(o *options) *cobra.Command {
	var (
		subject string
		search  string
		limit   int
	)
	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"history"},
		Short:   "List sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			subjects := a.repo.Subjects()
			filter := stats.Filter{Query: search}
			if subject != "" {
				s, err := resolveSubject(subjects, subject)
				if err != nil {
					return err
				}
				filter.SubjectID = s.ID
			}
			sessions := stats.SortByStartDesc(stats.FilterSessions(a.repo.Entries(), subjects, filter))
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[:limit]
			}
			if len(sessions) == 0 {
				printf(cmd.OutOrStdout(), "no sessions\n")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tDATE\tTIME\tSUBJECT\tDURATION\tNOTES")
			for _, s := range sessions {
				start := s.StartTime.In(a.loc)
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.ID,
					start.Format("2006-01-02"),
					start.Format("15:04"),
					stats.SubjectName(subjects, s.SubjectID),
					stats.Human(s.Duration),
					s.Notes,
				)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "only sessions of this subject (id or name)")
	cmd.Flags().StringVarP(&search, "search", "q", "", "match notes or subject name")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "show at most this many sessions")

	cmd.AddCommand(newEntryEditCmd(o), newEntryDeleteCmd(o))
	return cmd
}

func newEntryEditCmd(o *options) *cobra.Command {
	var (
		subject string
		minutes float64
		date    string
		note    string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			id := model.ID(args[0])
			var current *model.Session
			for _, s := range a.repo.Entries() {
				if s.ID == id {
					current = &s
					break
				}
			}
			if current == nil {
				return fmt.Errorf("no session %q", id)
			}

			patch := model.SessionPatch{ID: id}
			flags := cmd.Flags()
			if flags.Changed("subject") {
				s, err := resolveSubject(a.repo.Subjects(), subject)
				if err != nil {
					return err
				}
				patch.SubjectID = &s.ID
			}
			start, secs := current.StartTime, current.Duration
			if flags.Changed("minutes") {
				v, err := minutesToSeconds(minutes)
				if err != nil {
					return err
				}
				secs = v
				patch.Duration = &secs
			}
			if flags.Changed("date") {
				v, err := parseDate(date, a.loc)
				if err != nil {
					return err
				}
				start = v
				patch.StartTime = &start
			}
			if patch.Duration != nil || patch.StartTime != nil {
				end := start.Add(time.Duration(secs) * time.Second)
				patch.EndTime = &end
			}
			if flags.Changed("note") {
				trimmed := strings.TrimSpace(note)
				patch.Notes = &trimmed
			}

			ok, err := a.repo.UpdateEntry(patch)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no session %q", id)
			}
			printf(cmd.OutOrStdout(), "Updated %s\n", id)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "subject id or name")
	cmd.Flags().Float64VarP(&minutes, "minutes", "m", 0, "duration in minutes")
	cmd.Flags().StringVarP(&date, "date", "d", "", "start, as YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().StringVarP(&note, "note", "n", "", "note for the session")
	return cmd
}

func newEntryDeleteCmd(o *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			id := model.ID(args[0])
			var found *model.Session
			for _, s := range a.repo.Entries() {
				if s.ID == id {
					found = &s
					break
				}
			}
			if found == nil {
				return fmt.Errorf("no session %q", id)
			}
			question := fmt.Sprintf("Delete %s of %s on %s?",
				stats.Human(found.Duration),
				stats.SubjectName(a.repo.Subjects(), found.SubjectID),
				found.StartTime.In(a.loc).Format("2006-01-02"))
			if err := a.confirmOrAbort(yes, question); err != nil {
				return err
			}
			if err := a.repo.DeleteEntry(id); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
