package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/repository"
	"github.com/sadopc/lernzeit/internal/stats"
	"github.com/sadopc/lernzeit/internal/timer"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewSubjects
	viewHistory
	viewReports
	viewSettings
)

var viewNames = []string{"Dashboard", "Subjects", "History", "Reports", "Settings"}

// deps is shared by every view.
type deps struct {
	repo   *repository.Repository
	engine *timer.Engine
	loc    *time.Location
	now    func() time.Time
	log    *slog.Logger
}

func (d *deps) clock() time.Time {
	return d.now().In(d.loc)
}

func (d *deps) subjectName(id model.ID) string {
	return stats.SubjectName(d.repo.Subjects(), id)
}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// dataChangedMsg is sent after sessions, subjects or settings were written.
type dataChangedMsg struct{}

type exportDoneMsg struct {
	path string
}

func status(format string, args ...any) tea.Cmd {
	text := fmt.Sprintf(format, args...)
	return func() tea.Msg { return statusMsg{text: text} }
}

func errorStatus(err error) tea.Cmd {
	text := "Error: " + err.Error()
	if errors.Is(err, repository.ErrWriteFailed) {
		text = "Could not save, check disk space and permissions: " + err.Error()
	}
	return func() tea.Msg { return statusMsg{text: text, isError: true} }
}

func changed() tea.Msg { return dataChangedMsg{} }

// --- Form parsing ---

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, errors.New("enter a whole number above 0")
	}
	return n, nil
}

// parseOptionalInt accepts an empty string as zero.
func parseOptionalInt(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parsePositiveInt(s)
}

func parseMinutes(s string) (int64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, errors.New("enter minutes above 0")
	}
	return int64(v*60 + 0.5), nil
}

var dateLayouts = []string{"2006-01-02 15:04", "2006-01-02"}

func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("use YYYY-MM-DD HH:MM")
}

func validatePositiveInt(s string) error {
	_, err := parsePositiveInt(s)
	return err
}

func validateOptionalInt(s string) error {
	_, err := parseOptionalInt(s)
	return err
}

func validateMinutes(s string) error {
	_, err := parseMinutes(s)
	return err
}

func validateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("name is required")
	}
	return nil
}
