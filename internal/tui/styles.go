package tui

import "github.com/charmbracelet/lipgloss"

// palette is one colour theme, picked from the user's theme setting.
type palette struct {
	primary   lipgloss.Color
	secondary lipgloss.Color
	muted     lipgloss.Color
	success   lipgloss.Color
	warning   lipgloss.Color
	err       lipgloss.Color
	fg        lipgloss.Color
	subtle    lipgloss.Color
	highlight lipgloss.Color
}

var palettes = map[string]palette{
	"dark": {
		primary:   "#6C63FF",
		secondary: "#2EC4B6",
		muted:     "#666666",
		success:   "#2ECC71",
		warning:   "#F39C12",
		err:       "#E74C3C",
		fg:        "#C0CAF5",
		subtle:    "#414868",
		highlight: "#7AA2F7",
	},
	"light": {
		primary:   "#4B3FD9",
		secondary: "#12867B",
		muted:     "#7A7A7A",
		success:   "#1E8449",
		warning:   "#B9770E",
		err:       "#C0392B",
		fg:        "#1A1B26",
		subtle:    "#B8BCCF",
		highlight: "#2E59C7",
	},
}

// Chart colours cycle per project.
var chartColors = []lipgloss.Color{"#6C63FF", "#2EC4B6", "#FF6B6B", "#F39C12", "#2ECC71", "#9B59B6", "#3498DB"}

var (
	colorPrimary lipgloss.Color
	colorSubtle  lipgloss.Color

	activeTabStyle    lipgloss.Style
	inactiveTabStyle  lipgloss.Style
	panelStyle        lipgloss.Style
	activePanelStyle  lipgloss.Style
	promptPanelStyle  lipgloss.Style
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

func init() { applyTheme("dark") }

// applyTheme rebuilds every style from the named palette. Unknown names keep
// the dark palette.
func applyTheme(name string) {
	p, ok := palettes[name]
	if !ok {
		p = palettes["dark"]
	}
	colorPrimary = p.primary
	colorSubtle = p.subtle

	activeTabStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.primary).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(p.primary).
		Padding(0, 2)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(p.muted).Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.subtle).
		Padding(1, 2)
	activePanelStyle = panelStyle.BorderForeground(p.primary)
	promptPanelStyle = panelStyle.BorderForeground(p.warning)

	timerStyle = lipgloss.NewStyle().Bold(true).Foreground(p.primary).Align(lipgloss.Center)
	timerRunningStyle = timerStyle.Foreground(p.success)
	timerPausedStyle = timerStyle.Foreground(p.warning)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(p.fg)
	successStyle = lipgloss.NewStyle().Foreground(p.success)
	warningStyle = lipgloss.NewStyle().Foreground(p.warning)
	errorStyle = lipgloss.NewStyle().Foreground(p.err)
	mutedStyle = lipgloss.NewStyle().Foreground(p.muted)
	highlightStyle = lipgloss.NewStyle().Foreground(p.highlight)

	headerStyle = lipgloss.NewStyle().Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(p.muted).Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().Foreground(p.primary).Bold(true)
	normalItemStyle = lipgloss.NewStyle().Foreground(p.fg)
}

func chartColor(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(chartColors[i%len(chartColors)])
}
