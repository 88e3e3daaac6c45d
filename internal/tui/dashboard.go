package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/client"
	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/timer"
	"github.com/sadopc/tally/internal/timeutil"
)

const recentLimit = 6

type dashboardModel struct {
	api     API
	machine *timer.Machine
	width   int
	height  int

	today    *dashboard.Snapshot
	projects []api.Project
	currency string

	// Project picker state
	picking      bool
	pickerCursor int
}

func newDashboardModel(a API, m *timer.Machine) dashboardModel {
	return dashboardModel{api: a, machine: m}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) loadData() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			ctx, cancel := requestContext()
			defer cancel()
			snap, err := d.api.Dashboard(ctx, timeutil.Today)
			return summaryMsg{snap: snap, err: err}
		},
		func() tea.Msg {
			ctx, cancel := requestContext()
			defer cancel()
			projects, err := d.api.ListProjects(ctx, client.ProjectQuery{Status: "ACTIVE", Sort: "name_asc"})
			return projectsDataMsg{projects: projects, err: err}
		},
	)
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case summaryMsg:
		if msg.err != nil {
			return d, func() tea.Msg { return errStatus("Dashboard", msg.err) }
		}
		if msg.snap.Range == timeutil.Today {
			d.today = msg.snap
		}
		return d, nil

	case projectsDataMsg:
		if msg.err == nil {
			d.projects = msg.projects
		}
		return d, nil

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if d.machine.State() == timer.Active {
				return d, func() tea.Msg {
					return statusMsg{text: "A timer is already running. Press x to stop it first.", isError: true}
				}
			}
			if len(d.projects) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No projects yet. Press 2 to go to Projects and create one.", isError: true}
				}
			}
			if len(d.projects) == 1 {
				return d, startCmd(d.machine, d.projects[0].ID, nil)
			}
			d.picking = true
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Stop):
			if d.machine.State() == timer.Idle {
				return d, nil
			}
			return d, stopCmd(d.machine)

		case key.Matches(msg, keys.Pause):
			return d, toggleCmd(d.machine)
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
		if d.pickerCursor < len(d.projects)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		p := d.projects[d.pickerCursor]
		d.picking = false
		return d, startCmd(d.machine, p.ID, nil)
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) view(now time.Time) string {
	if d.width < 20 {
		return "Terminal too small"
	}
	contentWidth := d.width - 4

	v := d.machine.View(now)
	top := renderTimerPanel(v, contentWidth)
	if v.Prompting {
		top = renderIdlePrompt(v, contentWidth)
	}

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderProjectPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, d.renderSummaryPanel(contentWidth), bottomPanel)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	title := titleStyle.Render("Today")
	if d.today == nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Loading...")))
	}

	t := d.today.Totals
	header := fmt.Sprintf("%s  %s  %s  %s",
		title,
		highlightStyle.Render(formatSeconds(t.Seconds)),
		successStyle.Render(formatMoney(d.today.Summary.Revenue, d.currency)),
		mutedStyle.Render(fmt.Sprintf("%d done · %d active projects", t.CompletedTasks, t.ActiveProjects)),
	)

	if len(d.today.ProjectBreakdown) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, mutedStyle.Render("No entries today")))
	}

	rows := []string{header}
	for i, p := range d.today.ProjectBreakdown {
		dot := chartColor(i).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-20s %s  %s",
			dot, p.ProjectName, formatSeconds(p.Seconds), mutedStyle.Render(formatMoney(p.RevenueEuros, d.currency)),
		))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Entries")
	if d.today == nil || len(d.today.Timeline) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("No entries yet")))
	}

	rows := []string{title}
	for i, e := range d.today.Timeline {
		if i == recentLimit {
			break
		}
		name := e.Project.Name
		if e.Task != nil {
			name += " / " + e.Task.Title
		}
		note := ""
		if e.Note != nil {
			note = mutedStyle.Render("  " + *e.Note)
		}
		rows = append(rows, fmt.Sprintf("  ✓ %s  %-28s %s%s",
			e.StartAt.Local().Format("15:04"), name, formatSeconds(e.DurationSeconds), note,
		))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderProjectPicker(w int) string {
	rows := []string{titleStyle.Render("Select Project")}
	for i, p := range d.projects {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		label := p.Name
		if p.ClientName != nil {
			label += mutedStyle.Render(" · " + *p.ClientName)
		}
		rows = append(rows, style.Render(cursor+chartColor(i).Render("●")+" ")+label)
	}
	rows = append(rows, "", mutedStyle.Render("  enter: select  esc: cancel"))
	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
