package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
)

type reportMode int

const (
	reportWeeks reportMode = iota
	reportMonths
	reportDays
)

var reportModeNames = []string{"Weeks", "Months", "Days"}

func (m reportMode) next() reportMode {
	return (m + 1) % reportMode(len(reportModeNames))
}

const reportTableRows = 6

type reportsModel struct {
	deps   *deps
	width  int
	height int

	mode   reportMode
	offset int // 7-day blocks back from today (0 = current)

	subjects []model.Subject
	sessions []model.Session
	settings model.Settings
	end      time.Time

	chart barchart.Model
}

func newReportsModel(d *deps) reportsModel {
	return reportsModel{
		deps:  d,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	subjects []model.Subject
	sessions []model.Session
	settings model.Settings
	end      time.Time
}

func (r reportsModel) refresh() tea.Cmd {
	offset := r.offset
	return func() tea.Msg {
		return reportsDataMsg{
			subjects: r.deps.repo.Subjects(),
			sessions: r.deps.repo.Entries(),
			settings: r.deps.repo.Settings(),
			end:      r.deps.clock().AddDate(0, 0, -stats.DefaultDays*offset),
		}
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.subjects = msg.subjects
		r.sessions = msg.sessions
		r.settings = msg.settings
		r.end = msg.end
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Filter):
			r.mode = r.mode.next()
			return r, nil
		}
	}
	return r, nil
}

// days returns the seven day buckets ending at r.end.
func (r reportsModel) days() []stats.DayBucket {
	return stats.LastNDays(r.sessions, r.end, stats.DefaultDays)
}

// buildChart stacks one bar segment per subject for each of the seven days.
func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 10
	if r.height > 36 {
		chartHeight = 14
	}
	r.chart = barchart.New(chartWidth, chartHeight)

	days := r.days()
	perSubject := make([][]stats.DayBucket, len(r.subjects))
	known := make(map[model.ID]bool, len(r.subjects))
	for i, s := range r.subjects {
		known[s.ID] = true
		only := stats.FilterSessions(r.sessions, r.subjects, stats.Filter{SubjectID: s.ID})
		perSubject[i] = stats.LastNDays(only, r.end, stats.DefaultDays)
	}
	var orphans []model.Session
	for _, s := range r.sessions {
		if !known[s.SubjectID] {
			orphans = append(orphans, s)
		}
	}
	unknown := stats.LastNDays(orphans, r.end, stats.DefaultDays)

	bars := make([]barchart.BarData, 0, len(days))
	for i, d := range days {
		var values []barchart.BarValue
		for j, s := range r.subjects {
			if secs := perSubject[j][i].Seconds; secs > 0 {
				values = append(values, barchart.BarValue{
					Name:  s.Name,
					Value: float64(secs) / 3600,
					Style: lipgloss.NewStyle().Foreground(subjectColor(s.Color)),
				})
			}
		}
		if secs := unknown[i].Seconds; secs > 0 {
			values = append(values, barchart.BarValue{
				Name:  stats.UnknownSubject,
				Value: float64(secs) / 3600,
				Style: lipgloss.NewStyle().Foreground(colors.muted),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colors.subtle)}}
		}
		bars = append(bars, barchart.BarData{
			Label:  d.Representative.Format("Mon 02"),
			Values: values,
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	days := r.days()
	dateLabel := ""
	if len(days) > 0 {
		dateLabel = mutedStyle.Render(fmt.Sprintf("%s to %s   %s",
			days[0].Day.Start(r.deps.loc).Format("Jan 02"),
			days[len(days)-1].Day.Start(r.deps.loc).Format("Jan 02, 2006"),
			stats.Hours(sumDays(days)),
		))
	}

	tabs := make([]string, len(reportModeNames))
	for i, name := range reportModeNames {
		if reportMode(i) == r.mode {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom, titleStyle.Render("Reports"), "  ", dateLabel)

	var table string
	switch r.mode {
	case reportMonths:
		table = r.renderMonths()
	case reportDays:
		table = r.renderDays()
	default:
		table = r.renderWeeks()
	}

	nav := mutedStyle.Render("  ←/→: previous/next 7 days  c: weeks/months/days")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", r.renderLegend(), "",
			lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...), table, "", nav,
		),
	)
}

func sumDays(days []stats.DayBucket) int64 {
	var total int64
	for _, d := range days {
		total += d.Seconds
	}
	return total
}

func (r reportsModel) renderWeeks() string {
	weeks := stats.ByWeek(r.sessions, r.settings, r.deps.loc)
	if len(weeks) == 0 {
		return mutedStyle.Render("  No sessions yet")
	}
	rows := []string{mutedStyle.Render(fmt.Sprintf("  %-10s %10s %8s  %s", "Week", "Time", "Sessions", "Goal"))}
	for _, b := range weeks[:min(len(weeks), reportTableRows)] {
		rows = append(rows, fmt.Sprintf("  %-10s %10s %8d  %s %3.0f%% of %s",
			fmt.Sprintf("%d-W%02d", b.ISOYear, b.ISOWeek), stats.Human(b.Seconds), b.Count,
			progressBar(b.Progress, 16), b.Progress*100, stats.Hours(b.GoalSeconds)))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderMonths() string {
	months := stats.ByMonth(r.sessions, r.settings, r.deps.loc)
	if len(months) == 0 {
		return mutedStyle.Render("  No sessions yet")
	}
	rows := []string{mutedStyle.Render(fmt.Sprintf("  %-10s %10s %8s  %s", "Month", "Time", "Sessions", "Goal"))}
	for _, b := range months[:min(len(months), reportTableRows)] {
		rows = append(rows, fmt.Sprintf("  %-10s %10s %8d  %s %3.0f%% of %s",
			fmt.Sprintf("%d-%02d", b.Year, int(b.Month)), stats.Human(b.Seconds), b.Count,
			progressBar(b.Progress, 16), b.Progress*100, stats.Hours(b.GoalSeconds)))
	}
	return strings.Join(rows, "\n")
}

// renderDays lists the most recent days against the daily goal. Days that
// reach it are marked.
func (r reportsModel) renderDays() string {
	days := stats.ByDay(r.sessions, r.settings, r.deps.loc)
	if len(days) == 0 {
		return mutedStyle.Render("  No sessions yet")
	}
	rows := []string{mutedStyle.Render(fmt.Sprintf("  %-10s %10s %8s  %s", "Day", "Time", "Sessions", "Goal"))}
	for _, b := range days[:min(len(days), reportTableRows)] {
		mark := ""
		if b.GoalSeconds > 0 && b.Seconds >= b.GoalSeconds {
			mark = successStyle.Render(" ✓")
		}
		rows = append(rows, fmt.Sprintf("  %-10s %10s %8d  %s %3.0f%% of %s%s",
			b.Day.String(), stats.Human(b.Seconds), b.Count,
			progressBar(b.Progress, 16), b.Progress*100, stats.Hours(b.GoalSeconds), mark))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderLegend() string {
	var items []string
	for _, s := range r.subjects {
		items = append(items, colorDot(s.Color)+" "+s.Name)
	}
	if len(items) == 0 {
		return ""
	}
	return "  " + strings.Join(items, "  ")
}
