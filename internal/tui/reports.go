package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/timeutil"
)

const breakdownLimit = 8

type reportsModel struct {
	api    API
	clock  func() time.Time
	width  int
	height int

	rng      timeutil.Range
	snap     *dashboard.Snapshot
	currency string

	chart barchart.Model
}

func newReportsModel(a API) reportsModel {
	return reportsModel{
		api:   a,
		clock: time.Now,
		rng:   timeutil.Week,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
	if r.snap != nil {
		r.buildChart()
	}
}

func (r reportsModel) refresh() tea.Cmd {
	rng := r.rng
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		snap, err := r.api.Dashboard(ctx, rng)
		return summaryMsg{snap: snap, err: err}
	}
}

// nextRange cycles today, week, month.
func nextRange(r timeutil.Range) timeutil.Range {
	for i, c := range timeutil.Ranges {
		if c == r {
			return timeutil.Ranges[(i+1)%len(timeutil.Ranges)]
		}
	}
	return timeutil.Today
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case summaryMsg:
		// Failures are reported by the dashboard, which receives the same message.
		if msg.err != nil || msg.snap.Range != r.rng {
			return r, nil
		}
		r.snap = msg.snap
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Range) {
			r.rng = nextRange(r.rng)
			r.snap = nil
			return r, r.refresh()
		}
	}
	return r, nil
}

// dayBars fills the days without entries so the chart spans the whole range.
func dayBars(r timeutil.Range, days []dashboard.DayTotal, now time.Time) []barchart.BarData {
	byDate := make(map[string]int64, len(days))
	for _, d := range days {
		byDate[d.Date] = d.Seconds
	}

	layout := "Mon 02"
	if r == timeutil.Month {
		layout = "02"
	}

	var bars []barchart.BarData
	for d := timeutil.RangeStart(r, now); !d.After(now); d = d.AddDate(0, 0, 1) {
		hours := float64(byDate[d.Format("2006-01-02")]) / 3600
		style := chartColor(0)
		if hours == 0 {
			style = lipgloss.NewStyle().Foreground(colorSubtle)
		}
		bars = append(bars, barchart.BarData{
			Label:  d.Format(layout),
			Values: []barchart.BarValue{{Name: "hours", Value: hours, Style: style}},
		})
	}
	return bars
}

func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 10
	if r.height > 30 {
		chartHeight = 14
	}

	bars := dayBars(r.rng, r.snap.Days, r.clock())
	r.chart = barchart.New(chartWidth, chartHeight)
	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	var tabs []string
	for _, c := range timeutil.Ranges {
		label := strings.ToUpper(string(c[:1])) + string(c[1:])
		if c == r.rng {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...),
	)
	nav := mutedStyle.Render("  r: change range  e: export")

	if r.snap == nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, "", mutedStyle.Render("  Loading..."), "", nav))
	}

	t := r.snap.Totals
	totals := fmt.Sprintf("  %s tracked  %s  avg session %s  %d tasks done",
		highlightStyle.Render(formatHours(t.Seconds)),
		successStyle.Render(formatMoney(r.snap.Summary.Revenue, r.currency)),
		formatSeconds(t.AverageSessionSeconds),
		t.CompletedTasks,
	)

	chartView := ""
	if r.rng != timeutil.Today {
		chartView = r.chart.View()
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", totals, "", chartView, "",
			r.renderProjectTable(w), "", r.renderTaskTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderProjectTable(w int) string {
	if len(r.snap.ProjectBreakdown) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-24s %10s %8s %12s", "Project", "Duration", "Hours", "Revenue")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 58))),
	}
	for i, p := range r.snap.ProjectBreakdown {
		if i == breakdownLimit {
			break
		}
		dot := chartColor(i).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-22s %10s %8s %12s",
			dot, p.ProjectName, formatSeconds(p.Seconds), formatHours(p.Seconds), formatMoney(p.RevenueEuros, r.currency),
		))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderTaskTable(w int) string {
	if len(r.snap.TaskBreakdown) == 0 {
		return ""
	}

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-24s %-20s %10s", "Task", "Project", "Duration")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 58))),
	}
	for i, t := range r.snap.TaskBreakdown {
		if i == breakdownLimit {
			break
		}
		rows = append(rows, fmt.Sprintf("  %-24s %-20s %10s", t.TaskTitle, t.ProjectName, formatSeconds(t.Seconds)))
	}
	return strings.Join(rows, "\n")
}
