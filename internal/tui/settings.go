package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
)

type settingsModel struct {
	deps   *deps
	width  int
	height int

	settings   model.Settings
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	dailyGoal    *string
	learningDays *int
	darkMode     *bool
}

func newSettingsModel(d *deps) settingsModel {
	goal, days, dark := "", model.DefaultLearningDaysPerWeek, true
	return settingsModel{
		deps:         d,
		settings:     model.DefaultSettings(),
		dailyGoal:    &goal,
		learningDays: &days,
		darkMode:     &dark,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings model.Settings
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return settingsDataMsg{settings: s.deps.repo.Settings()}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(settingsDataMsg); ok {
		s.settings = msg.settings
		return s, nil
	}
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.dailyGoal = strconv.Itoa(s.settings.DailyGoalMinutes)
	*s.learningDays = s.settings.LearningDaysPerWeek
	*s.darkMode = s.settings.DarkMode

	dayOptions := make([]huh.Option[int], 7)
	for i := range dayOptions {
		dayOptions[i] = huh.NewOption(strconv.Itoa(i+1), i+1)
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Daily goal (minutes)").Value(s.dailyGoal).Validate(validatePositiveInt),
			huh.NewSelect[int]().Title("Learning days per week").Options(dayOptions...).Value(s.learningDays),
			huh.NewConfirm().Title("Dark mode").Affirmative("On").Negative("Off").Value(s.darkMode),
		).Title("Goals"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		return s.submit()
	}
	return s, cmd
}

// submit closes the form and saves its values.
func (s settingsModel) submit() (settingsModel, tea.Cmd) {
	s.formActive = false
	s.form = nil
	return s, s.save()
}

func (s settingsModel) save() tea.Cmd {
	goal, err := parsePositiveInt(*s.dailyGoal)
	if err != nil {
		return errorStatus(err)
	}
	days, dark := *s.learningDays, *s.darkMode
	if _, err := s.deps.repo.UpdateSettings(model.SettingsPatch{
		DailyGoalMinutes:    &goal,
		LearningDaysPerWeek: &days,
		DarkMode:            &dark,
	}); err != nil {
		return errorStatus(err)
	}
	return tea.Batch(s.refresh(), changed, status("Settings saved"))
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	st := s.settings
	dark := "off"
	if st.DarkMode {
		dark = "on"
	}
	row := func(label, value string) string {
		return fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(24).Render(label), highlightStyle.Render(value))
	}
	weekly := stats.WeeklyGoal(st)

	rows := []string{
		title,
		"",
		row("Daily goal", stats.Human(int64(st.DailyGoalMinutes)*60)),
		row("Learning days per week", strconv.Itoa(st.LearningDaysPerWeek)),
		row("Weekly goal", stats.Human(weekly)),
		row("Dark mode", dark),
		"",
		mutedStyle.Render("Press enter to edit settings"),
	}
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
