package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/timer"
)

// requestTimeout bounds every API call made from a command.
const requestTimeout = 10 * time.Second

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewProjects
	viewReports
	viewSettings
)

var viewNames = []string{"Dashboard", "Projects", "Reports", "Settings"}

// --- Messages ---

// timerDoneMsg reports a finished timer transition.
type timerDoneMsg struct {
	op  string
	err error
}

// syncedMsg reports a finished resync.
type syncedMsg struct {
	trigger timer.Trigger
	err     error
}

// signalMsg carries a timer change published on the bus.
type signalMsg timer.Signal

type idleMsg struct {
	action timer.Action
	err    error
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type summaryMsg struct {
	snap *dashboard.Snapshot
	err  error
}

type projectsDataMsg struct {
	projects []api.Project
	err      error
}

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func errStatus(prefix string, err error) statusMsg {
	return statusMsg{text: fmt.Sprintf("%s: %v", prefix, err), isError: true}
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

func formatMoney(v float64, currency string) string {
	if currency == "" || currency == "EUR" {
		return fmt.Sprintf("%.2f €", v)
	}
	return fmt.Sprintf("%.2f %s", v, currency)
}
