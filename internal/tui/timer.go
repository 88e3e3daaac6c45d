package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/tally/internal/timer"
)

// Commands wrapping the timer machine. The machine blocks on the network,
// so every call runs inside a tea.Cmd.

func startCmd(m *timer.Machine, projectID string, taskID *string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		return timerDoneMsg{op: "start", err: m.Start(ctx, projectID, taskID, nil)}
	}
}

// toggleCmd pauses a running timer and resumes a paused one.
func toggleCmd(m *timer.Machine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		switch m.State() {
		case timer.Active:
			return timerDoneMsg{op: "pause", err: m.Pause(ctx)}
		case timer.Paused:
			return timerDoneMsg{op: "resume", err: m.Resume(ctx)}
		}
		return nil
	}
}

func stopCmd(m *timer.Machine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		return timerDoneMsg{op: "stop", err: m.Stop(ctx)}
	}
}

func resyncCmd(m *timer.Machine, trigger timer.Trigger) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		return syncedMsg{trigger: trigger, err: m.Resync(ctx, trigger)}
	}
}

func loadCmd(m *timer.Machine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		return syncedMsg{trigger: timer.TriggerLoad, err: m.Load(ctx)}
	}
}

func idleCheckCmd(m *timer.Machine, now time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		action, err := m.CheckIdle(ctx, now)
		if action == timer.NoAction && err == nil {
			return nil
		}
		return idleMsg{action: action, err: err}
	}
}

func pauseFromPromptCmd(m *timer.Machine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		return timerDoneMsg{op: "pause", err: m.PauseFromPrompt(ctx)}
	}
}

var doneStatus = map[string]string{
	"start":  "Timer started",
	"pause":  "Timer paused",
	"resume": "Timer resumed",
	"stop":   "Timer stopped",
}

func renderTimerPanel(v timer.View, w int) string {
	timeStr := formatSeconds(v.Elapsed)

	projectLine := highlightStyle.Render(v.ProjectName)
	if v.TaskTitle != "" {
		projectLine += mutedStyle.Render(" / " + v.TaskTitle)
	}

	var content string
	switch v.State {
	case timer.Active:
		content = lipgloss.JoinVertical(lipgloss.Center,
			timerRunningStyle.Width(w-6).Render(timeStr),
			successStyle.Render("●  RUNNING"),
			projectLine,
		)
	case timer.Paused:
		content = lipgloss.JoinVertical(lipgloss.Center,
			timerPausedStyle.Width(w-6).Render(timeStr),
			warningStyle.Render("⏸  PAUSED since "+v.PausedAt.Local().Format("15:04")),
			projectLine,
			mutedStyle.Render("space: resume  x: discard"),
		)
	default:
		content = lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render("00:00:00"),
			mutedStyle.Render("■  STOPPED"),
			mutedStyle.Render("Press s to start tracking"),
		)
	}
	if v.Err != "" {
		content = lipgloss.JoinVertical(lipgloss.Center, content, errorStyle.Render(v.Err))
	}
	if v.State == timer.Idle {
		return panelStyle.Width(w).Render(content)
	}
	return activePanelStyle.Width(w).Render(content)
}

func renderIdlePrompt(v timer.View, w int) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		warningStyle.Bold(true).Render("Are you still working?"),
		"",
		"The timer for "+highlightStyle.Render(v.ProjectName)+" has been running for "+formatSeconds(v.Elapsed)+" without activity.",
		"",
		mutedStyle.Render("  c / any key: still working   p: pause now"),
	)
	return promptPanelStyle.Width(w).Render(content)
}
