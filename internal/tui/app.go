// Package tui is the interactive terminal UI: a dashboard with the study
// timer, subject management, the session history and reports.
package tui

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lernzeit/internal/export"
	"github.com/sadopc/lernzeit/internal/repository"
	"github.com/sadopc/lernzeit/internal/stats"
	"github.com/sadopc/lernzeit/internal/timer"
)

var exportFormats = []string{"json", "yaml", "csv"}

// App is the root Bubble Tea model.
type App struct {
	deps   *deps
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int
	exportDir     string

	dashboard dashboardModel
	subjects  subjectsModel
	history   historyModel
	reports   reportsModel
	settings  settingsModel

	help        help.Model
	status      string
	statusError bool
}

type Option func(*App)

// WithLocation sets the zone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(a *App) { a.deps.loc = loc }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.deps.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.deps.now = now }
}

// WithExportDir sets where exports are written. The default is the home
// directory.
func WithExportDir(dir string) Option {
	return func(a *App) { a.exportDir = dir }
}

func NewApp(repo *repository.Repository, engine *timer.Engine, opts ...Option) App {
	h := help.New()
	h.ShowAll = false

	a := App{
		deps: &deps{
			repo:   repo,
			engine: engine,
			loc:    time.Local,
			now:    time.Now,
			log:    slog.New(slog.DiscardHandler),
		},
		activeView: viewDashboard,
		help:       h,
	}
	for _, opt := range opts {
		opt(&a)
	}
	if a.exportDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			a.exportDir = home
		}
	}

	a.dashboard = newDashboardModel(a.deps)
	a.subjects = newSubjectsModel(a.deps)
	a.history = newHistoryModel(a.deps)
	a.reports = newReportsModel(a.deps)
	a.settings = newSettingsModel(a.deps)
	setTheme(repo.Settings().DarkMode)
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.loadData(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.subjects.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, a.refreshCurrentView()

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isCapturing() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewDashboard)
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewSubjects)
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewHistory)
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewReports)
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		}

	case tickMsg:
		// Always route ticks to the dashboard timer.
		a.dashboard, _ = a.dashboard.update(msg)
		return a, tickCmd()

	case statusMsg:
		a.status = msg.text
		a.statusError = msg.isError
		return a, nil

	case dataChangedMsg:
		setTheme(a.deps.repo.Settings().DarkMode)
		return a, tea.Batch(a.dashboard.loadData(), a.refreshCurrentView())

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusError = false
		return a, nil

	case dashboardDataMsg:
		// Loaded for the footer and the timer even when another view is shown.
		a.dashboard, _ = a.dashboard.update(msg)
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewSubjects:
		a.subjects, cmd = a.subjects.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

// isCapturing reports whether the active view owns every key, as it does
// while a form, a picker, a search box or a confirmation is open.
func (a App) isCapturing() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.formActive || a.dashboard.picking || a.dashboard.confirmDiscard
	case viewSubjects:
		return a.subjects.formActive || a.subjects.confirmDelete
	case viewHistory:
		return a.history.capturing() || a.history.confirmDelete
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewSubjects:
		return a.subjects.refresh()
	case viewHistory:
		return a.history.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewSubjects:
		content = a.subjects.view()
	case viewHistory:
		content = a.history.view()
	case viewReports:
		content = a.reports.view()
	case viewSettings:
		content = a.settings.view()
	}

	contentHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colors.primary).Render("lernzeit")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusError {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	timerInfo := ""
	t := a.dashboard.timer
	switch {
	case t.running():
		timerInfo = successStyle.Render(" ● " + stats.Clock(t.elapsed()))
	case t.paused():
		timerInfo = warningStyle.Render(" ⏸ " + stats.Clock(t.elapsed()))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export Format"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	return activePanelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(exportFormats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format string) tea.Cmd {
	d := a.deps
	dir := a.exportDir
	return func() tea.Msg {
		now := d.clock()
		var (
			data []byte
			err  error
		)
		switch format {
		case "json":
			data, err = export.EncodeJSON(export.NewDocument(d.repo.Snapshot(), now))
		case "yaml":
			data, err = export.EncodeYAML(export.NewDocument(d.repo.Snapshot(), now))
		default:
			var buf bytes.Buffer
			err = export.ToCSV(&buf, stats.SortByStartDesc(d.repo.Entries()), d.repo.Subjects(), d.loc)
			data = buf.Bytes()
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}

		path := filepath.Join(dir, export.DefaultFileName(now, format))
		if err := export.WriteFile(path, data); err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		d.log.Info("exported", "path", path, "format", format)
		return exportDoneMsg{path: path}
	}
}
