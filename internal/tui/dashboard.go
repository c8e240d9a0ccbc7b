package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
	"github.com/sadopc/lernzeit/internal/timer"
)

const recentLimit = 5

type dashboardModel struct {
	deps   *deps
	timer  timerModel
	width  int
	height int

	overview stats.Overview
	subjects []model.Subject
	recent   []model.Session

	// Subject picker state
	picking      bool
	pickerCursor int

	confirmDiscard bool

	formActive bool
	form       *huh.Form
	note       *string
}

func newDashboardModel(d *deps) dashboardModel {
	note := ""
	return dashboardModel{
		deps:  d,
		timer: newTimerModel(d.engine),
		note:  &note,
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

type dashboardDataMsg struct {
	overview stats.Overview
	subjects []model.Subject
	recent   []model.Session
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		entries := d.deps.repo.Entries()
		recent := stats.SortByStartDesc(entries)
		if len(recent) > recentLimit {
			recent = recent[:recentLimit]
		}
		return dashboardDataMsg{
			overview: stats.NewOverview(entries, d.deps.repo.Settings(), d.deps.clock()),
			subjects: d.deps.repo.Subjects(),
			recent:   recent,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.overview = msg.overview
		d.subjects = msg.subjects
		d.recent = msg.recent
		return d, nil

	case tickMsg:
		d.timer.refresh()
		return d, nil
	}

	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		d.timer.refresh()

		if d.confirmDiscard {
			d.confirmDiscard = false
			if key.Matches(msg, keys.Confirm) {
				return d.discard()
			}
			return d, status("Kept the tracked time")
		}
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			switch {
			case d.timer.running():
				return d, status("Timer is already running")
			case d.timer.paused():
				return d.toggle()
			}
			if len(d.subjects) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No subjects yet. Press 2 to go to Subjects and add one.", isError: true}
				}
			}
			if len(d.subjects) == 1 {
				return d.startTimer(d.subjects[0])
			}
			d.picking = true
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Pause):
			if d.timer.idle() {
				return d, nil
			}
			return d.toggle()

		case key.Matches(msg, keys.Finish):
			if d.timer.idle() {
				return d, nil
			}
			if d.timer.elapsed() <= 0 {
				return d, status("Nothing to save yet")
			}
			return d.showFinishForm()

		case key.Matches(msg, keys.Stop):
			if d.timer.idle() {
				return d, nil
			}
			if d.timer.elapsed() > 0 {
				d.confirmDiscard = true
				return d, nil
			}
			return d.discard()
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.subjects)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		d.picking = false
		if d.pickerCursor < len(d.subjects) {
			return d.startTimer(d.subjects[d.pickerCursor])
		}
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startTimer(s model.Subject) (dashboardModel, tea.Cmd) {
	if err := d.timer.start(s.ID); err != nil {
		return d, errorStatus(err)
	}
	d.deps.log.Info("timer started", "subject", s.ID)
	return d, status("Started %s", s.Name)
}

func (d dashboardModel) toggle() (dashboardModel, tea.Cmd) {
	if err := d.timer.toggle(); err != nil {
		return d, errorStatus(err)
	}
	if d.timer.paused() {
		return d, status("Timer paused")
	}
	return d, status("Timer resumed")
}

func (d dashboardModel) discard() (dashboardModel, tea.Cmd) {
	if err := d.timer.discard(); err != nil {
		return d, errorStatus(err)
	}
	return d, status("Timer stopped, nothing saved")
}

func (d dashboardModel) showFinishForm() (dashboardModel, tea.Cmd) {
	*d.note = ""
	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Note").
				Description(fmt.Sprintf("Save %s for %s", stats.Human(d.timer.elapsed()), d.deps.subjectName(d.timer.subject()))).
				Placeholder("optional").
				Value(d.note),
		),
	).WithShowHelp(true).WithShowErrors(true)
	d.formActive = true
	return d, d.form.Init()
}

func (d dashboardModel) updateForm(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			d.formActive = false
			d.form = nil
			return d, nil
		}
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	if d.form.State == huh.StateCompleted {
		d.formActive = false
		d.form = nil
		return d.finish(*d.note)
	}
	return d, cmd
}

// finish saves the tracked time as a session.
func (d dashboardModel) finish(note string) (dashboardModel, tea.Cmd) {
	session, err := d.timer.finish(note)
	if err != nil {
		if errors.Is(err, timer.ErrNothingToSave) {
			return d, status("Nothing to save yet")
		}
		return d, errorStatus(err)
	}
	name := d.deps.subjectName(session.SubjectID)
	d.deps.log.Info("session saved", "subject", session.SubjectID, "seconds", session.Duration)
	return d, tea.Batch(changed, status("Saved %s for %s", stats.Human(session.Duration), name))
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	if d.formActive && d.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Finish session"), "", d.form.View())
		return activePanelStyle.Width(contentWidth).Render(content)
	}

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	var bottomPanel string
	switch {
	case d.confirmDiscard:
		bottomPanel = d.renderDiscardPrompt(contentWidth)
	case d.picking:
		bottomPanel = d.renderSubjectPicker(contentWidth)
	default:
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	if d.timer.idle() {
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render(stats.Clock(0)),
			mutedStyle.Render("■  STOPPED"),
			mutedStyle.Render("Press s to start studying"),
		)
		return panelStyle.Width(w).Render(content)
	}

	clock := stats.Clock(d.timer.elapsed())
	var timeDisplay, indicator string
	if d.timer.paused() {
		timeDisplay = timerPausedStyle.Width(w - 6).Render(clock)
		indicator = warningStyle.Render("⏸  PAUSED")
	} else {
		timeDisplay = timerRunningStyle.Width(w - 6).Render(clock)
		indicator = successStyle.Render("●  RUNNING")
	}

	subject, _ := d.deps.repo.Subject(d.timer.subject())
	name := subject.Name
	if name == "" {
		name = stats.UnknownSubject
	}
	subjectLine := colorDot(subject.Color) + " " + highlightStyle.Render(name)
	hint := mutedStyle.Render("space: pause/resume  f: finish  x: discard")

	content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, subjectLine, hint)
	return activePanelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	o := d.overview
	barWidth := min(max(w-30, 10), 40)

	header := fmt.Sprintf("%s  %s %s",
		titleStyle.Render("Today"),
		highlightStyle.Render(stats.Human(o.TodaySeconds)),
		mutedStyle.Render("of "+stats.Human(o.DailyGoal)),
	)
	rows := []string{
		header,
		fmt.Sprintf("  %-8s %s %3.0f%%", "Day", progressBar(o.TodayProgress, barWidth), o.TodayProgress*100),
		fmt.Sprintf("  %-8s %s %3.0f%%", fmt.Sprintf("Week %d", o.Week.ISOWeek), progressBar(o.Week.Progress, barWidth), o.Week.Progress*100),
		fmt.Sprintf("  %-8s %s %3.0f%%", monthAbbr(o.Month.Month), progressBar(o.Month.Progress, barWidth), o.Month.Progress*100),
		"",
		mutedStyle.Render(fmt.Sprintf("  Streak %d days   Total %s in %d sessions   Average %s",
			o.Streak, stats.Human(o.TotalSeconds), o.Sessions, stats.Human(int64(o.AverageSeconds)))),
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Sessions")
	if len(d.recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No sessions yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	rows := []string{title}
	for _, s := range d.recent {
		subject, ok := d.deps.repo.Subject(s.SubjectID)
		name := stats.UnknownSubject
		if ok {
			name = subject.Name
		}
		start := s.StartTime.In(d.deps.loc).Format("02.01. 15:04")
		row := fmt.Sprintf("  %s %s  %-16s %s", colorDot(subject.Color), start, name, stats.Human(s.Duration))
		if s.Notes != "" {
			row += mutedStyle.Render("  " + s.Notes)
		}
		rows = append(rows, row)
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderSubjectPicker(w int) string {
	rows := []string{titleStyle.Render("Select Subject")}
	for i, s := range d.subjects {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s", cursor, colorDot(s.Color), s.Name)))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: select  esc: cancel"))
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderDiscardPrompt(w int) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		warningStyle.Render(fmt.Sprintf("Discard %s of tracked time?", stats.Clock(d.timer.elapsed()))),
		mutedStyle.Render("  y: discard  any other key: keep"),
	)
	return activePanelStyle.Width(w).Render(content)
}

func monthAbbr(m time.Month) string {
	if m < time.January || m > time.December {
		return "Month"
	}
	return m.String()[:3]
}

// progressBar renders frac (clamped to 0..1) as a bar of width cells.
func progressBar(frac float64, width int) string {
	frac = min(max(frac, 0), 1)
	filled := int(frac*float64(width) + 0.5)
	return successStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
}
