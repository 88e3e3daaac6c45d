package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/client"
	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/export"
	"github.com/sadopc/tally/internal/timer"
	"github.com/sadopc/tally/internal/timeutil"
)

// API is the part of client.Client the interface needs.
type API interface {
	Dashboard(ctx context.Context, r timeutil.Range) (*dashboard.Snapshot, error)
	Export(ctx context.Context, r timeutil.Range, f export.Format, w io.Writer) (string, error)
	ListProjects(ctx context.Context, q client.ProjectQuery) ([]api.Project, error)
	GetProject(ctx context.Context, id string) (*api.ProjectDetail, error)
	CreateProject(ctx context.Context, req api.ProjectCreateRequest) (*api.Project, error)
	UpdateProject(ctx context.Context, id string, req api.ProjectUpdateRequest) (*api.Project, error)
	CreateTask(ctx context.Context, req api.TaskCreateRequest) (*api.Task, error)
	UpdateTask(ctx context.Context, id string, req api.TaskUpdateRequest) (*api.Task, error)
	GetSettings(ctx context.Context) (*api.Settings, error)
	UpdateSettings(ctx context.Context, req api.SettingsUpdateRequest) (*api.Settings, error)
}

// Option configures an App.
type Option func(*App)

// WithClock overrides the wall clock used for rendering and idle checks.
func WithClock(clock func() time.Time) Option {
	return func(a *App) { a.clock = clock }
}

// WithBus refreshes the views whenever a timer on b changes state.
func WithBus(b *timer.Bus) Option {
	return func(a *App) { a.bus = b }
}

// WithExportDir sets where exported reports are written. Defaults to the
// home directory.
func WithExportDir(dir string) Option {
	return func(a *App) { a.exportDir = dir }
}

var exportFormats = []export.Format{export.CSV, export.JSON}

// App is the root Bubble Tea model.
type App struct {
	api       API
	machine   *timer.Machine
	clock     func() time.Time
	tick      func() tea.Cmd
	exportDir string
	bus       *timer.Bus
	signals   timer.Subscription
	width     int
	height    int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	dashboard dashboardModel
	projects  projectsModel
	reports   reportsModel
	settings  settingsModel

	help          help.Model
	status        string
	statusIsError bool
}

func NewApp(a API, m *timer.Machine, opts ...Option) App {
	h := help.New()
	h.ShowAll = false

	app := App{
		api:        a,
		machine:    m,
		clock:      time.Now,
		tick:       tickCmd,
		activeView: viewDashboard,
		dashboard:  newDashboardModel(a, m),
		projects:   newProjectsModel(a, m),
		reports:    newReportsModel(a),
		settings:   newSettingsModel(a),
		help:       h,
	}
	for _, opt := range opts {
		opt(&app)
	}
	app.reports.clock = app.clock
	if app.bus != nil {
		app.signals = app.bus.Subscribe()
	}
	if app.exportDir == "" {
		app.exportDir, _ = os.UserHomeDir()
	}
	return app
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		loadCmd(a.machine),
		a.dashboard.loadData(),
		a.settings.refresh(),
		a.tick(),
		a.waitForSignal(),
	)
}

// Close releases the bus subscription.
func (a App) Close() {
	a.signals.Close()
}

func (a App) waitForSignal() tea.Cmd {
	if a.signals.Signals == nil {
		return nil
	}
	ch := a.signals.Signals
	return func() tea.Msg {
		sig, ok := <-ch
		if !ok {
			return nil
		}
		return signalMsg(sig)
	}
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
		a.projects.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.FocusMsg:
		return a, resyncCmd(a.machine, timer.TriggerFocus)

	case tea.KeyMsg:
		now := a.clock()
		if a.machine.View(now).Prompting {
			if msg.String() == "p" {
				return a, pauseFromPromptCmd(a.machine)
			}
			a.machine.Continue(now)
			return a, nil
		}
		a.machine.Activity(now)

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
		case key.Matches(msg, keys.Sync):
			return a, tea.Batch(resyncCmd(a.machine, timer.TriggerSync), a.refreshCurrentView())
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.dashboard.loadData()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewProjects
			return a, a.projects.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewReports
			return a, a.reports.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		cmds := []tea.Cmd{a.tick()}
		if a.machine.State() == timer.Active {
			cmds = append(cmds, idleCheckCmd(a.machine, time.Time(msg)))
		}
		return a, tea.Batch(cmds...)

	case statusMsg:
		a.status = msg.text
		a.statusIsError = msg.isError
		return a, nil

	case timerDoneMsg:
		if msg.err != nil {
			a.setTimerError(msg.err)
			return a, nil
		}
		a.status = doneStatus[msg.op]
		a.statusIsError = false
		return a, a.refreshCurrentView()

	case syncedMsg:
		// Only a sync the user asked for reports failure; a later poll
		// retries the rest.
		switch {
		case msg.err != nil && msg.trigger == timer.TriggerSync:
			a.status = "Sync failed: " + timer.Describe(msg.err)
			a.statusIsError = true
		case msg.err == nil && msg.trigger == timer.TriggerLoad:
			return a, a.dashboard.loadData()
		}
		return a, nil

	case signalMsg:
		// Transitions made here already refresh through timerDoneMsg.
		if msg.Origin == a.machine.ID() && msg.Transition != timer.TransitionResync {
			return a, a.waitForSignal()
		}
		return a, tea.Batch(a.refreshCurrentView(), a.waitForSignal())

	case idleMsg:
		switch {
		case msg.err != nil:
			a.setTimerError(msg.err)
		case msg.action == timer.AutoPause:
			a.status = "Timer paused after inactivity"
			a.statusIsError = false
			return a, a.refreshCurrentView()
		}
		return a, nil

	case settingsMsg:
		if msg.err == nil {
			applyTheme(msg.settings.Theme)
			a.dashboard.currency = msg.settings.Currency
			a.reports.currency = msg.settings.Currency
		}
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd

	case summaryMsg:
		var cmd, cmd2 tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		a.reports, cmd2 = a.reports.update(msg)
		return a, tea.Batch(cmd, cmd2)

	case projectsDataMsg:
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd

	case projectListMsg, projectDetailMsg, projectSavedMsg:
		var cmd tea.Cmd
		a.projects, cmd = a.projects.update(msg)
		return a, cmd

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusIsError = false
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a *App) setTimerError(err error) {
	a.status = a.machine.Err()
	if a.status == "" {
		a.status = err.Error()
	}
	a.statusIsError = true
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewProjects:
		a.projects, cmd = a.projects.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

// isCapturing reports whether the active view owns every key press.
func (a App) isCapturing() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.picking
	case viewProjects:
		return a.projects.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewProjects:
		return a.projects.refresh()
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

	now := a.clock()
	header := a.renderHeader()
	footer := a.renderFooter(now)

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view(now)
	case viewProjects:
		content = a.projects.view()
	case viewReports:
		content = a.reports.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	} else if v := a.machine.View(now); v.Prompting && a.activeView != viewDashboard {
		content = lipgloss.JoinVertical(lipgloss.Left, renderIdlePrompt(v, a.width-4), content)
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

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("tally")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter(now time.Time) string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusIsError {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	timerInfo := ""
	switch v := a.machine.View(now); v.State {
	case timer.Active:
		timerInfo = successStyle.Render(" ● " + formatSeconds(v.Elapsed))
	case timer.Paused:
		timerInfo = warningStyle.Render(" ⏸ " + formatSeconds(v.Elapsed))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render(fmt.Sprintf("Export %s report", a.reports.rng))
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+strings.ToUpper(string(f))))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
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
		return a, exportCmd(a.api, a.exportDir, a.reports.rng, exportFormats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

// exportCmd downloads a report into dir under the name the server suggests.
func exportCmd(a API, dir string, r timeutil.Range, f export.Format) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()

		tmp, err := os.CreateTemp(dir, ".tally-export-*")
		if err != nil {
			return errStatus("Export", err)
		}
		defer os.Remove(tmp.Name())

		name, err := a.Export(ctx, r, f, tmp)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errStatus("Export", err)
		}
		if name == "" {
			name = fmt.Sprintf("report-%s.%s", r, f)
		}

		path := filepath.Join(dir, filepath.Base(name))
		if err := os.Rename(tmp.Name(), path); err != nil {
			return errStatus("Export", err)
		}
		return exportDoneMsg{path: path}
	}
}
