package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/store"
	"github.com/sadopc/tally/internal/timeutil"
)

// TimelineLimit caps Snapshot.Timeline.
const TimelineLimit = 20

type Snapshot struct {
	Range            timeutil.Range `json:"range"`
	Totals           Totals         `json:"totals"`
	ProjectBreakdown []ProjectTotal `json:"projectBreakdown"`
	TaskBreakdown    []TaskTotal    `json:"taskBreakdown"`
	Days             []DayTotal     `json:"graphByDay"`
	Summary          Summary        `json:"summary"`
	Timeline         []TimelineItem `json:"timeline"`
}

type Totals struct {
	Seconds               int64   `json:"seconds"`
	Hours                 float64 `json:"hours"`
	RevenueEuros          float64 `json:"revenueEuros"`
	AverageSessionSeconds int64   `json:"averageSessionSeconds"`
	CompletedTasks        int     `json:"completedTasks"`
	ActiveProjects        int     `json:"activeProjects"`
}

type ProjectTotal struct {
	ProjectID    string  `json:"projectId"`
	ProjectName  string  `json:"projectName"`
	Seconds      int64   `json:"seconds"`
	RevenueEuros float64 `json:"revenueEuros"`
}

type TaskTotal struct {
	TaskID      string `json:"taskId"`
	TaskTitle   string `json:"taskTitle"`
	ProjectName string `json:"projectName"`
	Seconds     int64  `json:"seconds"`
}

type DayTotal struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Seconds int64  `json:"seconds"`
}

type Summary struct {
	TotalHours float64 `json:"totalHours"`
	Revenue    float64 `json:"revenue"`
}

type TimelineItem struct {
	ID              string         `json:"id"`
	StartAt         time.Time      `json:"startAt"`
	Project         api.ProjectRef `json:"project"`
	Task            *api.TaskRef   `json:"task,omitempty"`
	DurationSeconds int64          `json:"durationSeconds"`
	Note            *string        `json:"note,omitempty"`
}

// Build folds closed entries into a snapshot. Day keys use the calendar date
// of each entry's start in loc.
func Build(r timeutil.Range, entries []store.TimeEntry, completedTasks, activeProjects int, loc *time.Location) *Snapshot {
	if loc == nil {
		loc = time.Local
	}
	snap := &Snapshot{
		Range:            r,
		ProjectBreakdown: []ProjectTotal{},
		TaskBreakdown:    []TaskTotal{},
		Days:             []DayTotal{},
		Timeline:         []TimelineItem{},
	}

	projects := map[string]*ProjectTotal{}
	projectRevenue := map[string]float64{}
	tasks := map[string]*TaskTotal{}
	days := map[string]*DayTotal{}

	var total int64
	var revenue float64
	for _, e := range entries {
		secs := e.Duration
		amount := revenueOf(secs, e.Project.HourlyRate)
		total += secs
		revenue += amount

		p, ok := projects[e.ProjectID]
		if !ok {
			p = &ProjectTotal{ProjectID: e.ProjectID, ProjectName: e.Project.Name}
			projects[e.ProjectID] = p
		}
		p.Seconds += secs
		projectRevenue[e.ProjectID] += amount

		if e.Task != nil {
			t, ok := tasks[e.Task.ID]
			if !ok {
				t = &TaskTotal{TaskID: e.Task.ID, TaskTitle: e.Task.Title, ProjectName: e.Project.Name}
				tasks[e.Task.ID] = t
			}
			t.Seconds += secs
		}

		key := e.StartTime.In(loc).Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &DayTotal{Date: key}
			days[key] = d
		}
		d.Seconds += secs

		item := TimelineItem{
			ID:              e.ID,
			StartAt:         e.StartTime,
			Project:         api.ProjectRef{ID: e.ProjectID, Name: e.Project.Name},
			DurationSeconds: secs,
			Note:            e.Note,
		}
		if e.Task != nil {
			item.Task = &api.TaskRef{ID: e.Task.ID, Title: e.Task.Title}
		}
		snap.Timeline = append(snap.Timeline, item)
	}

	snap.Totals = Totals{
		Seconds:        total,
		Hours:          float64(total) / 3600,
		RevenueEuros:   round2(revenue),
		CompletedTasks: completedTasks,
		ActiveProjects: activeProjects,
	}
	if len(entries) > 0 {
		snap.Totals.AverageSessionSeconds = int64(math.Round(float64(total) / float64(len(entries))))
	}
	snap.Summary = Summary{
		TotalHours: round2(float64(total) / 3600),
		Revenue:    round2(revenue),
	}

	for id, p := range projects {
		p.RevenueEuros = round2(projectRevenue[id])
		snap.ProjectBreakdown = append(snap.ProjectBreakdown, *p)
	}
	sort.Slice(snap.ProjectBreakdown, func(i, j int) bool {
		a, b := snap.ProjectBreakdown[i], snap.ProjectBreakdown[j]
		if a.Seconds != b.Seconds {
			return a.Seconds > b.Seconds
		}
		if a.ProjectName != b.ProjectName {
			return a.ProjectName < b.ProjectName
		}
		return a.ProjectID < b.ProjectID
	})

	for _, t := range tasks {
		snap.TaskBreakdown = append(snap.TaskBreakdown, *t)
	}
	sort.Slice(snap.TaskBreakdown, func(i, j int) bool {
		a, b := snap.TaskBreakdown[i], snap.TaskBreakdown[j]
		if a.Seconds != b.Seconds {
			return a.Seconds > b.Seconds
		}
		if a.TaskTitle != b.TaskTitle {
			return a.TaskTitle < b.TaskTitle
		}
		return a.TaskID < b.TaskID
	})

	for _, d := range days {
		snap.Days = append(snap.Days, *d)
	}
	sort.Slice(snap.Days, func(i, j int) bool { return snap.Days[i].Date < snap.Days[j].Date })

	sort.SliceStable(snap.Timeline, func(i, j int) bool {
		return snap.Timeline[i].StartAt.After(snap.Timeline[j].StartAt)
	})
	if len(snap.Timeline) > TimelineLimit {
		snap.Timeline = snap.Timeline[:TimelineLimit]
	}
	return snap
}

func revenueOf(secs int64, rate *float64) float64 {
	if rate == nil {
		return 0
	}
	return float64(secs) / 3600 * *rate
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
