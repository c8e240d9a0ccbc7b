package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
)

type subjectsModel struct {
	deps   *deps
	width  int
	height int

	totals []stats.SubjectTotal
	cursor int

	confirmDelete bool

	formActive bool
	form       *huh.Form
	editingID  model.ID // empty while adding

	// Form field pointers (survive value copies)
	formName  *string
	formColor *string
	formGoal  *string
}

func newSubjectsModel(d *deps) subjectsModel {
	name, color, goal := "", model.Colors[0], ""
	return subjectsModel{
		deps:      d,
		formName:  &name,
		formColor: &color,
		formGoal:  &goal,
	}
}

func (p *subjectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type subjectsDataMsg struct {
	totals []stats.SubjectTotal
}

func (p subjectsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return subjectsDataMsg{totals: stats.BySubject(p.deps.repo.Entries(), p.deps.repo.Subjects())}
	}
}

// selected returns the subject under the cursor. The Unknown row has no id
// and cannot be edited.
func (p subjectsModel) selected() (model.Subject, bool) {
	if p.cursor >= len(p.totals) {
		return model.Subject{}, false
	}
	s := p.totals[p.cursor].Subject
	return s, s.ID != ""
}

func (p subjectsModel) update(msg tea.Msg) (subjectsModel, tea.Cmd) {
	if msg, ok := msg.(subjectsDataMsg); ok {
		p.totals = msg.totals
		if p.cursor >= len(p.totals) {
			p.cursor = max(0, len(p.totals)-1)
		}
		return p, nil
	}
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if p.confirmDelete {
			p.confirmDelete = false
			if key.Matches(msg, keys.Confirm) {
				return p.deleteSelected()
			}
			return p, nil
		}

		switch {
		case key.Matches(msg, keys.Up):
			if p.cursor > 0 {
				p.cursor--
			}
		case key.Matches(msg, keys.Down):
			if p.cursor < len(p.totals)-1 {
				p.cursor++
			}
		case key.Matches(msg, keys.New):
			return p.showForm(model.Subject{Color: model.Colors[len(p.totals)%len(model.Colors)]})
		case key.Matches(msg, keys.Edit):
			if s, ok := p.selected(); ok {
				return p.showForm(s)
			}
		case key.Matches(msg, keys.Delete):
			if _, ok := p.selected(); ok {
				p.confirmDelete = true
			}
		}
	}
	return p, nil
}

func (p subjectsModel) showForm(s model.Subject) (subjectsModel, tea.Cmd) {
	p.editingID = s.ID
	*p.formName = s.Name
	*p.formColor = s.Color
	*p.formGoal = ""
	if s.GoalMinutes > 0 {
		*p.formGoal = strconv.Itoa(s.GoalMinutes)
	}

	colorOptions := make([]huh.Option[string], len(model.Colors))
	for i, c := range model.Colors {
		colorOptions[i] = huh.NewOption(colorDot(c)+" "+c, c)
	}

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(p.formName).Validate(validateName),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(p.formColor),
			huh.NewInput().Title("Goal (minutes)").Placeholder("none").Value(p.formGoal).Validate(validateOptionalInt),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p subjectsModel) updateForm(msg tea.Msg) (subjectsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		p.form = nil
		return p, p.save()
	}
	return p, cmd
}

// save writes the form values as a new or changed subject.
func (p subjectsModel) save() tea.Cmd {
	name := strings.TrimSpace(*p.formName)
	color := *p.formColor
	goal, err := parseOptionalInt(*p.formGoal)
	if err != nil {
		return errorStatus(err)
	}

	if p.editingID == "" {
		s, err := p.deps.repo.AddSubject(model.Subject{Name: name, Color: color, GoalMinutes: goal})
		if err != nil {
			return errorStatus(err)
		}
		return tea.Batch(p.refresh(), changed, status("Added %s", s.Name))
	}

	if _, err := p.deps.repo.UpdateSubject(model.SubjectPatch{
		ID:          p.editingID,
		Name:        &name,
		Color:       &color,
		GoalMinutes: &goal,
	}); err != nil {
		return errorStatus(err)
	}
	return tea.Batch(p.refresh(), changed, status("Updated %s", name))
}

func (p subjectsModel) deleteSelected() (subjectsModel, tea.Cmd) {
	s, ok := p.selected()
	if !ok {
		return p, nil
	}
	if err := p.deps.repo.DeleteSubject(s.ID); err != nil {
		return p, errorStatus(err)
	}
	return p, tea.Batch(p.refresh(), changed, status("Deleted %s", s.Name))
}

func (p subjectsModel) view() string {
	w := p.width - 4

	if p.formActive && p.form != nil {
		title := titleStyle.Render("New Subject")
		if p.editingID != "" {
			title = titleStyle.Render("Edit Subject")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", p.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("Subjects")
	if len(p.totals) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No subjects yet. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("    %-22s %10s %8s %6s  %s", "Name", "Time", "Sessions", "Share", "Goal")))

	for i, t := range p.totals {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		goal := ""
		if t.GoalSeconds > 0 {
			goal = fmt.Sprintf("%s %3.0f%% of %s", progressBar(t.Progress, 10), t.Progress*100, stats.Human(t.GoalSeconds))
		}
		row := style.Render(fmt.Sprintf("%s%s %-22s %10s %8d %5.0f%%",
			cursor, colorDot(t.Subject.Color), t.Subject.Name, stats.Human(t.Seconds), t.Count, t.Share*100))
		rows = append(rows, row+"  "+goal)
	}

	rows = append(rows, "")
	if p.confirmDelete {
		s, _ := p.selected()
		rows = append(rows, warningStyle.Render(fmt.Sprintf(
			"  Delete %s? Its sessions are kept and shown as %s.  y: delete  any other key: cancel",
			s.Name, stats.UnknownSubject)))
	} else {
		rows = append(rows, mutedStyle.Render("  n: new  enter: edit  d: delete"))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
