package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
)

const defaultLogMinutes = 30

type historyModel struct {
	deps   *deps
	width  int
	height int

	sessions []model.Session
	subjects []model.Subject
	cursor   int
	offset   int

	search    textinput.Model
	searching bool
	// filter is 0 for all subjects, else 1 + index into subjects.
	filter int

	confirmDelete bool

	formActive  bool
	form        *huh.Form
	editingID   model.ID // empty while logging a new session
	formSubject *string
	formStart   *string
	formMinutes *string
	formNote    *string
}

func newHistoryModel(d *deps) historyModel {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search notes or subjects"
	search.CharLimit = 64

	subject, start, minutes, note := "", "", "", ""
	return historyModel{
		deps:        d,
		search:      search,
		formSubject: &subject,
		formStart:   &start,
		formMinutes: &minutes,
		formNote:    &note,
	}
}

func (h *historyModel) setSize(w, hgt int) {
	h.width = w
	h.height = hgt
	h.search.Width = max(w-12, 10)
}

// capturing reports whether keys belong to the search box or a form.
func (h historyModel) capturing() bool {
	return h.searching || h.formActive
}

type historyDataMsg struct {
	sessions []model.Session
	subjects []model.Subject
}

func (h historyModel) currentFilter() stats.Filter {
	f := stats.Filter{Query: strings.TrimSpace(h.search.Value())}
	if h.filter > 0 && h.filter <= len(h.subjects) {
		f.SubjectID = h.subjects[h.filter-1].ID
	}
	return f
}

func (h historyModel) refresh() tea.Cmd {
	f := h.currentFilter()
	return func() tea.Msg {
		subjects := h.deps.repo.Subjects()
		sessions := stats.FilterSessions(h.deps.repo.Entries(), subjects, f)
		return historyDataMsg{sessions: stats.SortByStartDesc(sessions), subjects: subjects}
	}
}

func (h historyModel) selected() (model.Session, bool) {
	if h.cursor >= len(h.sessions) {
		return model.Session{}, false
	}
	return h.sessions[h.cursor], true
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	if msg, ok := msg.(historyDataMsg); ok {
		h.sessions = msg.sessions
		h.subjects = msg.subjects
		if h.filter > len(h.subjects) {
			h.filter = 0
		}
		if h.cursor >= len(h.sessions) {
			h.cursor = max(0, len(h.sessions)-1)
		}
		h.clampOffset()
		return h, nil
	}
	if h.formActive && h.form != nil {
		return h.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if h.searching {
			return h.updateSearch(msg)
		}
		if h.confirmDelete {
			h.confirmDelete = false
			if key.Matches(msg, keys.Confirm) {
				return h.deleteSelected()
			}
			return h, nil
		}

		switch {
		case key.Matches(msg, keys.Up):
			if h.cursor > 0 {
				h.cursor--
			}
			h.clampOffset()
		case key.Matches(msg, keys.Down):
			if h.cursor < len(h.sessions)-1 {
				h.cursor++
			}
			h.clampOffset()
		case key.Matches(msg, keys.Search):
			h.searching = true
			return h, h.search.Focus()
		case key.Matches(msg, keys.Filter):
			h.filter = (h.filter + 1) % (len(h.subjects) + 1)
			h.cursor = 0
			return h, h.refresh()
		case key.Matches(msg, keys.Back):
			if h.search.Value() != "" || h.filter != 0 {
				h.search.SetValue("")
				h.filter = 0
				h.cursor = 0
				return h, h.refresh()
			}
		case key.Matches(msg, keys.New):
			return h.showForm(model.Session{})
		case key.Matches(msg, keys.Edit):
			if s, ok := h.selected(); ok {
				return h.showForm(s)
			}
		case key.Matches(msg, keys.Delete):
			if _, ok := h.selected(); ok {
				h.confirmDelete = true
			}
		}
	}
	return h, nil
}

func (h historyModel) updateSearch(msg tea.KeyMsg) (historyModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		h.searching = false
		h.search.Blur()
		return h, nil
	}
	before := h.search.Value()
	var cmd tea.Cmd
	h.search, cmd = h.search.Update(msg)
	if h.search.Value() != before {
		h.cursor = 0
		return h, tea.Batch(cmd, h.refresh())
	}
	return h, cmd
}

func (h *historyModel) visibleRows() int {
	return max(h.height-12, 5)
}

func (h *historyModel) clampOffset() {
	n := h.visibleRows()
	if h.cursor < h.offset {
		h.offset = h.cursor
	}
	if h.cursor >= h.offset+n {
		h.offset = h.cursor - n + 1
	}
	h.offset = max(0, min(h.offset, max(0, len(h.sessions)-n)))
}

func (h historyModel) showForm(s model.Session) (historyModel, tea.Cmd) {
	if len(h.subjects) == 0 {
		return h, func() tea.Msg {
			return statusMsg{text: "No subjects yet. Press 2 to go to Subjects and add one.", isError: true}
		}
	}

	h.editingID = s.ID
	if s.ID == "" {
		now := h.deps.clock()
		s.SubjectID = h.subjects[0].ID
		if f := h.currentFilter(); f.SubjectID != "" {
			s.SubjectID = f.SubjectID
		}
		s.StartTime = now.Add(-defaultLogMinutes * time.Minute)
		s.Duration = defaultLogMinutes * 60
	}
	*h.formSubject = string(s.SubjectID)
	*h.formStart = s.StartTime.In(h.deps.loc).Format("2006-01-02 15:04")
	*h.formMinutes = strconv.FormatFloat(float64(s.Duration)/60, 'f', -1, 64)
	*h.formNote = s.Notes

	options := make([]huh.Option[string], 0, len(h.subjects)+1)
	known := false
	for _, sub := range h.subjects {
		options = append(options, huh.NewOption(colorDot(sub.Color)+" "+sub.Name, string(sub.ID)))
		known = known || sub.ID == s.SubjectID
	}
	if !known {
		options = append(options, huh.NewOption(stats.UnknownSubject, string(s.SubjectID)))
	}

	loc := h.deps.loc
	h.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Subject").Options(options...).Value(h.formSubject),
			huh.NewInput().Title("Start").Description("YYYY-MM-DD HH:MM").Value(h.formStart).
				Validate(func(v string) error {
					_, err := parseDateTime(v, loc)
					return err
				}),
			huh.NewInput().Title("Minutes").Value(h.formMinutes).Validate(validateMinutes),
			huh.NewInput().Title("Note").Placeholder("optional").Value(h.formNote),
		),
	).WithShowHelp(true).WithShowErrors(true)

	h.formActive = true
	return h, h.form.Init()
}

func (h historyModel) updateForm(msg tea.Msg) (historyModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			h.formActive = false
			h.form = nil
			return h, nil
		}
	}

	form, cmd := h.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		h.form = f
	}

	if h.form.State == huh.StateCompleted {
		h.formActive = false
		h.form = nil
		return h, h.save()
	}
	return h, cmd
}

// save writes the form values as a new or changed session. The end time is
// always start plus duration.
func (h historyModel) save() tea.Cmd {
	start, err := parseDateTime(*h.formStart, h.deps.loc)
	if err != nil {
		return errorStatus(err)
	}
	secs, err := parseMinutes(*h.formMinutes)
	if err != nil {
		return errorStatus(err)
	}
	subject := model.ID(*h.formSubject)
	note := strings.TrimSpace(*h.formNote)
	end := start.Add(time.Duration(secs) * time.Second)

	if h.editingID == "" {
		s, err := h.deps.repo.AddEntry(model.Session{
			SubjectID: subject,
			StartTime: start,
			EndTime:   end,
			Duration:  secs,
			Notes:     note,
		})
		if err != nil {
			return errorStatus(err)
		}
		return tea.Batch(h.refresh(), changed,
			status("Logged %s for %s", stats.Human(s.Duration), h.deps.subjectName(s.SubjectID)))
	}

	ok, err := h.deps.repo.UpdateEntry(model.SessionPatch{
		ID:        h.editingID,
		SubjectID: &subject,
		StartTime: &start,
		EndTime:   &end,
		Duration:  &secs,
		Notes:     &note,
	})
	if err != nil {
		return errorStatus(err)
	}
	if !ok {
		return tea.Batch(h.refresh(), status("Session no longer exists"))
	}
	return tea.Batch(h.refresh(), changed, status("Session updated"))
}

func (h historyModel) deleteSelected() (historyModel, tea.Cmd) {
	s, ok := h.selected()
	if !ok {
		return h, nil
	}
	if err := h.deps.repo.DeleteEntry(s.ID); err != nil {
		return h, errorStatus(err)
	}
	return h, tea.Batch(h.refresh(), changed, status("Session deleted"))
}

func (h historyModel) view() string {
	w := h.width - 4

	if h.formActive && h.form != nil {
		title := titleStyle.Render("Log Session")
		if h.editingID != "" {
			title = titleStyle.Render("Edit Session")
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", h.form.View()))
	}

	filterLabel := "all subjects"
	if f := h.currentFilter(); f.SubjectID != "" {
		filterLabel = h.deps.subjectName(f.SubjectID)
	}
	header := fmt.Sprintf("%s  %s  %s",
		titleStyle.Render("History"),
		highlightStyle.Render(filterLabel),
		mutedStyle.Render(fmt.Sprintf("%d sessions, %s", len(h.sessions), stats.Human(stats.Total(h.sessions)))),
	)

	rows := []string{header, h.search.View(), ""}
	if len(h.sessions) == 0 {
		rows = append(rows, mutedStyle.Render("  No sessions match. Press n to log one."))
	} else {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("    %-10s %-5s %-20s %9s  %s", "Date", "Time", "Subject", "Duration", "Notes")))
		end := min(h.offset+h.visibleRows(), len(h.sessions))
		for i := h.offset; i < end; i++ {
			s := h.sessions[i]
			cursor := "  "
			style := normalItemStyle
			if i == h.cursor {
				cursor = "> "
				style = selectedItemStyle
			}
			subject, _ := h.deps.repo.Subject(s.SubjectID)
			start := s.StartTime.In(h.deps.loc)
			rows = append(rows, style.Render(fmt.Sprintf("%s%s %-10s %-5s %-18s %9s  %s",
				cursor, colorDot(subject.Color), start.Format("2006-01-02"), start.Format("15:04"),
				h.deps.subjectName(s.SubjectID), stats.Human(s.Duration), s.Notes)))
		}
	}

	rows = append(rows, "")
	if h.confirmDelete {
		s, _ := h.selected()
		rows = append(rows, warningStyle.Render(fmt.Sprintf("  Delete the %s session from %s?  y: delete  any other key: cancel",
			stats.Human(s.Duration), s.StartTime.In(h.deps.loc).Format("2006-01-02 15:04"))))
	} else {
		rows = append(rows, mutedStyle.Render("  /: search  c: cycle subject  n: log  enter: edit  d: delete  esc: clear filter"))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
