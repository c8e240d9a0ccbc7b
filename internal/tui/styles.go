package tui

import "github.com/charmbracelet/lipgloss"

type palette struct {
	primary   lipgloss.Color
	accent    lipgloss.Color
	muted     lipgloss.Color
	success   lipgloss.Color
	warning   lipgloss.Color
	error     lipgloss.Color
	fg        lipgloss.Color
	subtle    lipgloss.Color
	highlight lipgloss.Color
}

var (
	darkPalette = palette{
		primary:   "#6C63FF",
		accent:    "#FF6B6B",
		muted:     "#666666",
		success:   "#2ECC71",
		warning:   "#F39C12",
		error:     "#E74C3C",
		fg:        "#C0CAF5",
		subtle:    "#414868",
		highlight: "#7AA2F7",
	}
	lightPalette = palette{
		primary:   "#4B44CC",
		accent:    "#D64545",
		muted:     "#8A8A8A",
		success:   "#1E9E52",
		warning:   "#C27C0E",
		error:     "#C0392B",
		fg:        "#24283B",
		subtle:    "#C8CBD9",
		highlight: "#2E5CB8",
	}
)

// subjectColors maps the categorical subject colors to terminal colors.
var subjectColors = map[string]lipgloss.Color{
	"blue":   "#3498DB",
	"red":    "#E74C3C",
	"purple": "#9B59B6",
	"green":  "#2ECC71",
	"yellow": "#F1C40F",
	"pink":   "#FF79C6",
	"indigo": "#6C63FF",
	"orange": "#F39C12",
	"teal":   "#2EC4B6",
	"rose":   "#FF6B6B",
}

var (
	colors palette

	activeTabStyle    lipgloss.Style
	inactiveTabStyle  lipgloss.Style
	panelStyle        lipgloss.Style
	activePanelStyle  lipgloss.Style
	timerStyle        lipgloss.Style
	timerRunningStyle lipgloss.Style
	timerPausedStyle  lipgloss.Style
	titleStyle        lipgloss.Style
	successStyle      lipgloss.Style
	warningStyle      lipgloss.Style
	errorStyle        lipgloss.Style
	mutedStyle        lipgloss.Style
	highlightStyle    lipgloss.Style
	headerStyle       lipgloss.Style
	footerStyle       lipgloss.Style
	selectedItemStyle lipgloss.Style
	normalItemStyle   lipgloss.Style
)

func init() {
	setTheme(true)
}

// setTheme rebuilds every style from the dark or light palette.
func setTheme(dark bool) {
	colors = lightPalette
	if dark {
		colors = darkPalette
	}

	activeTabStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.primary).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(colors.primary).
		Padding(0, 2)
	inactiveTabStyle = lipgloss.NewStyle().
		Foreground(colors.muted).
		Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.subtle).
		Padding(1, 2)
	activePanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.primary).
		Padding(1, 2)

	timerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colors.primary).
		Align(lipgloss.Center)
	timerRunningStyle = timerStyle.Foreground(colors.success)
	timerPausedStyle = timerStyle.Foreground(colors.warning)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colors.fg)
	successStyle = lipgloss.NewStyle().Foreground(colors.success)
	warningStyle = lipgloss.NewStyle().Foreground(colors.warning)
	errorStyle = lipgloss.NewStyle().Foreground(colors.error)
	mutedStyle = lipgloss.NewStyle().Foreground(colors.muted)
	highlightStyle = lipgloss.NewStyle().Foreground(colors.highlight)

	headerStyle = lipgloss.NewStyle().Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(colors.muted).Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().Foreground(colors.primary).Bold(true)
	normalItemStyle = lipgloss.NewStyle().Foreground(colors.fg)
}

func subjectColor(name string) lipgloss.Color {
	if c, ok := subjectColors[name]; ok {
		return c
	}
	return colors.muted
}

func colorDot(name string) string {
	return lipgloss.NewStyle().Foreground(subjectColor(name)).Render("●")
}
