package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/stats"
)

const barWidth = 30

func newStatsCmd(o *options) *cobra.Command {
	var (
		days   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals, goals, streak and recent days",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			if days < 1 || days > 366 {
				return errors.New("--days must be between 1 and 366")
			}
			now := a.clock()
			sessions := a.repo.Entries()
			settings := a.repo.Settings()
			ov := stats.NewOverview(sessions, settings, now)
			recent := stats.LastNDays(sessions, now, days)

			if asJSON {
				ov.LastDays = recent
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ov)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "Total\t%s in %d sessions\n", stats.Human(ov.TotalSeconds), ov.Sessions)
			_, _ = fmt.Fprintf(w, "Average\t%s per session\n", stats.Human(int64(math.Round(ov.AverageSeconds))))
			_, _ = fmt.Fprintf(w, "Streak\t%d days\n", ov.Streak)
			_, _ = fmt.Fprintf(w, "Today\t%s of %s (%.0f%%)\n",
				stats.Human(ov.TodaySeconds), stats.Human(ov.DailyGoal), ov.TodayProgress*100)
			_, _ = fmt.Fprintf(w, "Week %d\t%s of %s (%.0f%%)\n",
				ov.Week.ISOWeek, stats.Human(ov.Week.Seconds), stats.Human(ov.Week.GoalSeconds), ov.Week.Progress*100)
			_, _ = fmt.Fprintf(w, "%s\t%s of %s (%.0f%%)\n",
				now.Month(), stats.Human(ov.Month.Seconds), stats.Human(ov.Month.GoalSeconds), ov.Month.Progress*100)
			_, _ = fmt.Fprintln(w)

			heights := stats.BarHeights(recent)
			for i, d := range recent {
				bar := strings.Repeat("█", int(math.Round(heights[i]*barWidth)))
				_, _ = fmt.Fprintf(w, "%s %s\t%s\t%s\n",
					d.Day.Weekday().String()[:3], d.Day, bar, stats.Human(d.Seconds))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVar(&days, "days", stats.DefaultDays, "number of days in the chart")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the overview as JSON")
	return cmd
}
