package tui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/client"
	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/export"
	"github.com/sadopc/tally/internal/timer"
	"github.com/sadopc/tally/internal/timeutil"
)

// fakeServer stands in for both the REST API and the timer backend.
type fakeServer struct {
	mu       sync.Mutex
	now      func() time.Time
	projects []api.Project
	open     *api.TimeEntry
	settings api.Settings
	// activeErr fails the next ActiveTimer call.
	activeErr error

	projectUpdates []api.ProjectUpdateRequest
	taskUpdates    []api.TaskUpdateRequest
	settingUpdates []api.SettingsUpdateRequest
	createdTasks   []api.TaskCreateRequest
	exports        []string
}

func (f *fakeServer) StartTimer(_ context.Context, req api.StartTimerRequest) (*api.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open != nil {
		return nil, &api.Error{Status: http.StatusConflict, Message: "active timer already exists"}
	}
	name := req.ProjectID
	for _, p := range f.projects {
		if p.ID == req.ProjectID {
			name = p.Name
		}
	}
	f.open = &api.TimeEntry{
		ID:        "entry-" + req.ProjectID,
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		StartAt:   f.now(),
		Project:   &api.ProjectRef{ID: req.ProjectID, Name: name},
	}
	cp := *f.open
	return &cp, nil
}

func (f *fakeServer) StopTimer(context.Context) (*api.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open == nil {
		return nil, &api.Error{Status: http.StatusNotFound, Message: "no active timer"}
	}
	e := *f.open
	end := f.now()
	e.EndAt = &end
	e.DurationSeconds = timeutil.Duration(e.StartAt, end)
	f.open = nil
	return &e, nil
}

func (f *fakeServer) ActiveTimer(context.Context) (*api.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.activeErr; err != nil {
		f.activeErr = nil
		return nil, err
	}
	if f.open == nil {
		return nil, nil
	}
	cp := *f.open
	return &cp, nil
}

func (f *fakeServer) Dashboard(_ context.Context, r timeutil.Range) (*dashboard.Snapshot, error) {
	return &dashboard.Snapshot{
		Range: r,
		Totals: dashboard.Totals{
			Seconds:        5400,
			CompletedTasks: 2,
			ActiveProjects: len(f.projects),
		},
		ProjectBreakdown: []dashboard.ProjectTotal{{ProjectID: "p1", ProjectName: "Website", Seconds: 5400, RevenueEuros: 90}},
		TaskBreakdown:    []dashboard.TaskTotal{{TaskID: "t1", TaskTitle: "Landing page", ProjectName: "Website", Seconds: 1800}},
		Days:             []dashboard.DayTotal{{Date: "2026-03-04", Seconds: 5400}},
		Summary:          dashboard.Summary{TotalHours: 1.5, Revenue: 90},
		Timeline: []dashboard.TimelineItem{{
			ID:              "e1",
			StartAt:         time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
			Project:         api.ProjectRef{ID: "p1", Name: "Website"},
			DurationSeconds: 5400,
		}},
	}, nil
}

func (f *fakeServer) Export(_ context.Context, r timeutil.Range, format export.Format, w io.Writer) (string, error) {
	f.mu.Lock()
	f.exports = append(f.exports, string(r)+"."+string(format))
	f.mu.Unlock()
	_, err := io.WriteString(w, "report body")
	return "report-" + string(r) + "." + string(format), err
}

func (f *fakeServer) ListProjects(context.Context, client.ProjectQuery) ([]api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Project(nil), f.projects...), nil
}

func (f *fakeServer) GetProject(_ context.Context, id string) (*api.ProjectDetail, error) {
	for _, p := range f.projects {
		if p.ID == id {
			return &api.ProjectDetail{
				Project: p,
				Tasks: []api.Task{
					{ID: "t1", ProjectID: id, Title: "Landing page", Status: "TODO", Priority: "HIGH"},
					{ID: "t2", ProjectID: id, Title: "Footer", Status: "DONE", Priority: "LOW"},
				},
				Attachments: []api.Attachment{{ID: "a1", ProjectID: id, Filename: "brief.pdf", SizeBytes: 2048}},
			}, nil
		}
	}
	return nil, &api.Error{Status: http.StatusNotFound, Message: "project not found"}
}

func (f *fakeServer) CreateProject(_ context.Context, req api.ProjectCreateRequest) (*api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := api.Project{ID: "p" + req.Name, Name: req.Name, Status: "ACTIVE", Tags: req.Tags}
	f.projects = append(f.projects, p)
	return &p, nil
}

func (f *fakeServer) UpdateProject(_ context.Context, id string, req api.ProjectUpdateRequest) (*api.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectUpdates = append(f.projectUpdates, req)
	return &api.Project{ID: id}, nil
}

func (f *fakeServer) CreateTask(_ context.Context, req api.TaskCreateRequest) (*api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdTasks = append(f.createdTasks, req)
	return &api.Task{ID: "new", ProjectID: req.ProjectID, Title: req.Title}, nil
}

func (f *fakeServer) UpdateTask(_ context.Context, id string, req api.TaskUpdateRequest) (*api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskUpdates = append(f.taskUpdates, req)
	return &api.Task{ID: id}, nil
}

func (f *fakeServer) GetSettings(context.Context) (*api.Settings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeServer) UpdateSettings(_ context.Context, req api.SettingsUpdateRequest) (*api.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settingUpdates = append(f.settingUpdates, req)
	if req.Theme != nil {
		f.settings.Theme = *req.Theme
	}
	s := f.settings
	return &s, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	app     App
	server  *fakeServer
	machine *timer.Machine
	clock   *testClock
}

func newTestEnv(t *testing.T, projects ...api.Project) *testEnv {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)}
	srv := &fakeServer{
		now:      clock.Now,
		projects: projects,
		settings: api.Settings{Theme: "dark", Locale: "fr-FR", Currency: "EUR"},
	}
	m := timer.New(srv,
		timer.WithClock(clock.Now),
		timer.WithInactivity(10*time.Minute, time.Minute),
	)
	app := NewApp(srv, m, WithClock(clock.Now), WithExportDir(t.TempDir()))
	app.width = 120
	app.height = 40
	app.tick = func() tea.Cmd { return nil }
	app.dashboard.setSize(120, 36)
	app.projects.setSize(120, 36)
	app.reports.setSize(120, 36)
	app.settings.setSize(120, 36)
	t.Cleanup(func() { applyTheme("dark") })
	return &testEnv{app: app, server: srv, machine: m, clock: clock}
}

// send feeds msg to the app and runs every resulting command synchronously,
// feeding their messages back until nothing is left.
func (e *testEnv) send(t *testing.T, msg tea.Msg) {
	t.Helper()
	queue := []tea.Msg{msg}
	for i := 0; len(queue) > 0; i++ {
		if i > 100 {
			t.Fatal("message loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		model, cmd := e.app.Update(next)
		e.app = model.(App)
		queue = append(queue, runCmd(cmd)...)
	}
}

func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

var (
	website = api.Project{ID: "p1", Name: "Website", Status: "ACTIVE"}
	mobile  = api.Project{ID: "p2", Name: "Mobile", Status: "ACTIVE"}
)

// ============================================================
// Formatting helpers
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{90 * time.Minute, "01:30:00"},
		{25*time.Hour + 61*time.Second, "25:01:01"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(3661); got != "01:01:01" {
		t.Fatalf("formatSeconds(3661) = %q", got)
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.0h"},
		{5400, "1.5h"},
		{36000, "10.0h"},
	}
	for _, tt := range tests {
		if got := formatHours(tt.in); got != tt.want {
			t.Errorf("formatHours(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	if got := formatMoney(90, "EUR"); got != "90.00 €" {
		t.Fatalf("got %q", got)
	}
	if got := formatMoney(12.5, "USD"); got != "12.50 USD" {
		t.Fatalf("got %q", got)
	}
}

func TestViewNames(t *testing.T) {
	if len(viewNames) != int(viewSettings)+1 {
		t.Fatalf("expected a name per view, got %d", len(viewNames))
	}
}

// ============================================================
// Reports
// ============================================================

func TestNextRangeCycles(t *testing.T) {
	r := timeutil.Today
	var got []timeutil.Range
	for range 3 {
		r = nextRange(r)
		got = append(got, r)
	}
	want := []timeutil.Range{timeutil.Week, timeutil.Month, timeutil.Today}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDayBarsFillsMissingDays(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	bars := dayBars(timeutil.Week, []dashboard.DayTotal{
		{Date: "2026-03-02", Seconds: 7200},
		{Date: "2026-03-04", Seconds: 1800},
	}, now)

	if len(bars) != 3 {
		t.Fatalf("expected Monday through Wednesday, got %d bars", len(bars))
	}
	want := []float64{2, 0, 0.5}
	for i, b := range bars {
		if b.Values[0].Value != want[i] {
			t.Errorf("bar %d (%s): got %v, want %v", i, b.Label, b.Values[0].Value, want[i])
		}
	}
	if bars[0].Label != "Mon 02" {
		t.Fatalf("unexpected label %q", bars[0].Label)
	}
}

func TestReportsRangeKeyRefreshes(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, keyRune('3'))
	if env.app.activeView != viewReports {
		t.Fatalf("expected reports view, got %v", env.app.activeView)
	}
	if env.app.reports.snap == nil || env.app.reports.snap.Range != timeutil.Week {
		t.Fatal("reports should load the week on entry")
	}

	env.send(t, keyRune('r'))
	if env.app.reports.rng != timeutil.Month || env.app.reports.snap.Range != timeutil.Month {
		t.Fatalf("expected month snapshot, got %s", env.app.reports.rng)
	}
	if out := env.app.View(); !strings.Contains(out, "Landing page") {
		t.Fatal("report should list the task breakdown")
	}
}

// ============================================================
// Dashboard and timer
// ============================================================

func TestDashboardStartWithSingleProject(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, projectsDataMsg{projects: []api.Project{website}})

	env.send(t, keyRune('s'))
	if env.machine.State() != timer.Active {
		t.Fatalf("expected active timer, got %v", env.machine.State())
	}
	if env.app.status != "Timer started" {
		t.Fatalf("unexpected status %q", env.app.status)
	}

	env.clock.Advance(90 * time.Second)
	out := env.app.View()
	if !strings.Contains(out, "00:01:30") || !strings.Contains(out, "RUNNING") {
		t.Fatal("timer panel should show the running elapsed time")
	}
}

func TestDashboardPickerSelectsProject(t *testing.T) {
	env := newTestEnv(t, website, mobile)
	env.send(t, projectsDataMsg{projects: []api.Project{website, mobile}})

	env.send(t, keyRune('s'))
	if !env.app.dashboard.picking {
		t.Fatal("two projects should open the picker")
	}
	if !strings.Contains(env.app.View(), "Select Project") {
		t.Fatal("picker should render")
	}

	// Keys go to the picker while it is open.
	env.send(t, keyRune('3'))
	if env.app.activeView != viewDashboard {
		t.Fatal("picker should capture keys")
	}

	env.send(t, tea.KeyMsg{Type: tea.KeyDown})
	env.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	if v := env.machine.View(env.clock.Now()); v.ProjectID != "p2" {
		t.Fatalf("expected Mobile timer, got %q", v.ProjectID)
	}
}

func TestDashboardStartWithoutProjects(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, keyRune('s'))
	if !env.app.statusIsError || !strings.Contains(env.app.status, "No projects") {
		t.Fatalf("unexpected status %q", env.app.status)
	}
}

func TestPauseResumeStop(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, projectsDataMsg{projects: []api.Project{website}})
	env.send(t, keyRune('s'))
	env.clock.Advance(30 * time.Second)

	env.send(t, tea.KeyMsg{Type: tea.KeySpace})
	if env.machine.State() != timer.Paused {
		t.Fatalf("expected paused, got %v", env.machine.State())
	}
	if footer := env.app.renderFooter(env.clock.Now()); !strings.Contains(footer, "00:00:30") {
		t.Fatal("footer should show the frozen elapsed time")
	}

	env.clock.Advance(time.Hour)
	env.send(t, tea.KeyMsg{Type: tea.KeySpace})
	if env.machine.State() != timer.Active || env.machine.Elapsed(env.clock.Now()) != 30 {
		t.Fatalf("expected resumed at 30s, got %v / %d", env.machine.State(), env.machine.Elapsed(env.clock.Now()))
	}

	env.send(t, keyRune('x'))
	if env.machine.State() != timer.Idle || env.app.status != "Timer stopped" {
		t.Fatalf("expected stopped, got %v / %q", env.machine.State(), env.app.status)
	}
}

func TestStartConflictShowsMessage(t *testing.T) {
	env := newTestEnv(t, website)
	env.server.open = &api.TimeEntry{ID: "other", ProjectID: "p9", StartAt: env.clock.Now()}
	env.send(t, projectsDataMsg{projects: []api.Project{website}})

	env.send(t, keyRune('s'))
	if !env.app.statusIsError || env.app.status != "a timer is already running" {
		t.Fatalf("unexpected status %q", env.app.status)
	}
}

func TestIdlePromptPause(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, projectsDataMsg{projects: []api.Project{website}})
	env.send(t, keyRune('s'))

	env.clock.Advance(10 * time.Minute)
	env.send(t, tickMsg(env.clock.Now()))
	if !env.machine.View(env.clock.Now()).Prompting {
		t.Fatal("expected the inactivity prompt")
	}
	if !strings.Contains(env.app.View(), "Are you still working?") {
		t.Fatal("prompt should render")
	}

	env.send(t, keyRune('p'))
	if env.machine.State() != timer.Paused {
		t.Fatalf("expected paused after answering the prompt, got %v", env.machine.State())
	}
}

func TestIdlePromptContinue(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, projectsDataMsg{projects: []api.Project{website}})
	env.send(t, keyRune('s'))

	env.clock.Advance(10 * time.Minute)
	env.send(t, tickMsg(env.clock.Now()))
	env.send(t, keyRune('c'))
	if env.machine.View(env.clock.Now()).Prompting || env.machine.State() != timer.Active {
		t.Fatal("continue should dismiss the prompt and keep running")
	}
}

func TestIdlePromptSwallowsDismissingKey(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, projectsDataMsg{projects: []api.Project{website}})
	env.send(t, keyRune('s'))

	env.clock.Advance(10 * time.Minute)
	env.send(t, tickMsg(env.clock.Now()))
	env.send(t, keyRune('x'))
	if env.machine.View(env.clock.Now()).Prompting {
		t.Fatal("any key should dismiss the prompt")
	}
	if env.machine.State() != timer.Active {
		t.Fatalf("the dismissing key must not stop the timer, got %v", env.machine.State())
	}
}

func TestIdleAutoPauseAfterGrace(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, projectsDataMsg{projects: []api.Project{website}})
	env.send(t, keyRune('s'))

	env.clock.Advance(10 * time.Minute)
	env.send(t, tickMsg(env.clock.Now()))
	env.clock.Advance(time.Minute)
	env.send(t, tickMsg(env.clock.Now()))

	if env.machine.State() != timer.Paused {
		t.Fatalf("expected auto pause, got %v", env.machine.State())
	}
	if env.app.status != "Timer paused after inactivity" {
		t.Fatalf("unexpected status %q", env.app.status)
	}
}

func TestFocusResyncsFromServer(t *testing.T) {
	env := newTestEnv(t, website)
	env.server.open = &api.TimeEntry{
		ID:        "remote",
		ProjectID: "p1",
		StartAt:   env.clock.Now().Add(-time.Minute),
		Project:   &api.ProjectRef{ID: "p1", Name: "Website"},
	}

	env.send(t, tea.FocusMsg{})
	v := env.machine.View(env.clock.Now())
	if v.State != timer.Active || v.EntryID != "remote" || v.Elapsed != 60 {
		t.Fatalf("focus should adopt the server timer, got %+v", v)
	}
}

func TestManualSyncFailureShowsStatus(t *testing.T) {
	env := newTestEnv(t, website)
	env.server.activeErr = errors.New("connection refused")

	env.send(t, tea.KeyMsg{Type: tea.KeyCtrlR})
	if !env.app.statusIsError || env.app.status != "Sync failed: could not reach the server, try again" {
		t.Fatalf("unexpected status %q", env.app.status)
	}
}

func TestBusSignalRefreshesView(t *testing.T) {
	env := newTestEnv(t, website)
	bus := timer.NewBus()
	env.app.signals = bus.Subscribe()

	bus.Publish(timer.Signal{Origin: "other-session", Transition: "start"})
	msg := env.app.waitForSignal()()
	sig, ok := msg.(signalMsg)
	if !ok || sig.Origin != "other-session" {
		t.Fatalf("expected the published signal, got %#v", msg)
	}

	// Closing first lets the re-armed wait return instead of blocking.
	env.app.Close()
	env.send(t, msg)
	if env.app.dashboard.today == nil {
		t.Fatal("a signal should reload the dashboard")
	}
}

func TestOwnTransitionSignalIgnored(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, signalMsg{Origin: env.machine.ID(), Transition: "start"})
	if env.app.dashboard.today != nil {
		t.Fatal("own transitions refresh through timerDoneMsg only")
	}

	env.send(t, signalMsg{Origin: env.machine.ID(), Transition: timer.TransitionResync})
	if env.app.dashboard.today == nil {
		t.Fatal("a resync picked up by this session should reload the dashboard")
	}
}

// ============================================================
// Projects
// ============================================================

func TestProjectsArchiveAndDetail(t *testing.T) {
	env := newTestEnv(t, website)
	env.send(t, keyRune('2'))
	if len(env.app.projects.projects) != 1 {
		t.Fatalf("expected one project, got %d", len(env.app.projects.projects))
	}

	env.send(t, keyRune('d'))
	if len(env.server.projectUpdates) != 1 || *env.server.projectUpdates[0].Status != "ARCHIVED" {
		t.Fatalf("expected archive update, got %+v", env.server.projectUpdates)
	}

	env.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	if env.app.projects.detail == nil || len(env.app.projects.detail.Tasks) != 2 {
		t.Fatal("enter should load the project detail")
	}
	out := env.app.View()
	if !strings.Contains(out, "brief.pdf") || !strings.Contains(out, "2.0 kB") {
		t.Fatal("detail should list attachments with sizes")
	}

	// 's' on the first task starts a task-level timer.
	env.send(t, keyRune('s'))
	v := env.machine.View(env.clock.Now())
	if v.State != timer.Active || v.TaskID == nil || *v.TaskID != "t1" {
		t.Fatalf("expected task timer, got %+v", v)
	}

	env.send(t, tea.KeyMsg{Type: tea.KeyDown})
	env.send(t, keyRune('d'))
	if len(env.server.taskUpdates) != 0 {
		t.Fatal("completing a done task should do nothing")
	}
	env.send(t, tea.KeyMsg{Type: tea.KeyUp})
	env.send(t, keyRune('d'))
	if len(env.server.taskUpdates) != 1 || *env.server.taskUpdates[0].Status != "DONE" {
		t.Fatalf("expected task done update, got %+v", env.server.taskUpdates)
	}
}

func TestProjectRequests(t *testing.T) {
	req, err := projectCreateRequest(projectFields{name: " Site ", client: "", rate: "55,5", tags: "web, , seo"})
	if err != nil {
		t.Fatal(err)
	}
	if req.Name != "Site" || req.ClientName != nil || *req.HourlyRate != 55.5 {
		t.Fatalf("unexpected create request %+v", req)
	}
	if len(req.Tags) != 2 || req.Tags[1] != "seo" {
		t.Fatalf("unexpected tags %v", req.Tags)
	}

	upd, err := projectUpdateRequest(projectFields{name: "Site", status: "ARCHIVED"})
	if err != nil {
		t.Fatal(err)
	}
	if !upd.ClientName.Null || !upd.HourlyRate.Null {
		t.Fatalf("cleared fields should be sent as null: %+v", upd)
	}
	if *upd.Status != "ARCHIVED" {
		t.Fatalf("unexpected status %v", upd.Status)
	}

	if _, err := projectCreateRequest(projectFields{name: "x", rate: "-3"}); err == nil {
		t.Fatal("negative rate should fail")
	}
}

func TestTaskRequests(t *testing.T) {
	req, err := taskCreateRequest("p1", taskFields{title: "Write", priority: "HIGH", status: "TODO", estimate: "90"})
	if err != nil {
		t.Fatal(err)
	}
	if req.ProjectID != "p1" || *req.EstimateMinutes != 90 || req.Description != nil {
		t.Fatalf("unexpected task request %+v", req)
	}

	upd, err := taskUpdateRequest(taskFields{title: "Write", description: "notes"})
	if err != nil {
		t.Fatal(err)
	}
	if upd.Description.Value != "notes" || !upd.EstimateMinutes.Null || upd.Status != nil {
		t.Fatalf("unexpected update %+v", upd)
	}

	if _, err := parseEstimate("1.5"); err == nil {
		t.Fatal("fractional estimate should fail")
	}
}

func TestSaveTaskCmdCreates(t *testing.T) {
	env := newTestEnv(t, website)
	msg := saveTaskCmd(env.server, "p1", "", taskFields{title: "New", priority: "LOW", status: "TODO"})()
	saved, ok := msg.(projectSavedMsg)
	if !ok || saved.err != nil || saved.text != "Task created" {
		t.Fatalf("unexpected message %#v", msg)
	}
	if len(env.server.createdTasks) != 1 || env.server.createdTasks[0].Title != "New" {
		t.Fatalf("unexpected tasks %+v", env.server.createdTasks)
	}
}

// ============================================================
// Settings and export
// ============================================================

func TestSettingsApplyTheme(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, settingsMsg{settings: &api.Settings{Theme: "light", Locale: "fr-FR", Currency: "EUR"}})
	if colorPrimary != palettes["light"].primary {
		t.Fatal("light theme should be applied")
	}
	if env.app.dashboard.currency != "EUR" {
		t.Fatal("currency should reach the dashboard")
	}
}

func TestSaveSettingsSendsChangesOnly(t *testing.T) {
	env := newTestEnv(t)
	current := api.Settings{Theme: "dark", Locale: "fr-FR", Currency: "EUR"}
	msg := saveSettingsCmd(env.server, current, settingsFields{theme: "light", locale: "fr-FR", currency: "EUR"})()

	got := msg.(settingsMsg)
	if got.err != nil || !got.saved || got.settings.Theme != "light" {
		t.Fatalf("unexpected message %+v", got)
	}
	req := env.server.settingUpdates[0]
	if req.Theme == nil || req.Locale != nil || req.Currency != nil {
		t.Fatalf("expected only theme to change, got %+v", req)
	}
}

func TestExportWritesReport(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	msg := exportCmd(env.server, dir, timeutil.Week, export.CSV)()

	done, ok := msg.(exportDoneMsg)
	if !ok {
		t.Fatalf("unexpected message %#v", msg)
	}
	if done.path != filepath.Join(dir, "report-week.csv") {
		t.Fatalf("unexpected path %q", done.path)
	}
	b, err := os.ReadFile(done.path)
	if err != nil || string(b) != "report body" {
		t.Fatalf("unexpected content %q (%v)", b, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary file left behind: %d entries", len(entries))
	}
}

func TestExportPickerFromApp(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, keyRune('e'))
	if !env.app.exportPicking {
		t.Fatal("e should open the export picker")
	}
	env.send(t, tea.KeyMsg{Type: tea.KeyDown})
	env.send(t, tea.KeyMsg{Type: tea.KeyEnter})

	if env.app.exportPicking || !strings.HasSuffix(env.app.status, "report-week.json") {
		t.Fatalf("unexpected status %q", env.app.status)
	}
}

// ============================================================
// App model
// ============================================================

func TestNewApp(t *testing.T) {
	env := newTestEnv(t)
	if env.app.activeView != viewDashboard || env.app.showHelp || env.app.exportPicking {
		t.Fatal("unexpected initial state")
	}
	if env.app.isCapturing() {
		t.Fatal("no view should capture keys initially")
	}
}

func TestAppLoadingState(t *testing.T) {
	env := newTestEnv(t)
	env.app.width = 0
	if out := env.app.View(); out != "Loading..." {
		t.Fatalf("expected Loading..., got %q", out)
	}
}

func TestAppViewStates(t *testing.T) {
	env := newTestEnv(t, website)
	for v := range viewState(len(viewNames)) {
		env.app.activeView = v
		if out := env.app.View(); out == "" {
			t.Fatalf("view %d rendered empty", v)
		}
	}
}

func TestAppTabCycles(t *testing.T) {
	env := newTestEnv(t)
	for i := range len(viewNames) {
		env.send(t, tea.KeyMsg{Type: tea.KeyTab})
		want := viewState((i + 1) % len(viewNames))
		if env.app.activeView != want {
			t.Fatalf("step %d: got %v, want %v", i, env.app.activeView, want)
		}
	}
}

func TestAppRenderHeaderContainsAllTabs(t *testing.T) {
	env := newTestEnv(t)
	header := env.app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
}

func TestKeyMapFullHelp(t *testing.T) {
	if len(keys.ShortHelp()) == 0 {
		t.Fatal("short help should have bindings")
	}
	for i, g := range keys.FullHelp() {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

func TestStylesRender(t *testing.T) {
	for _, theme := range []string{"dark", "light", "unknown"} {
		applyTheme(theme)
		for name, s := range map[string]func(string) string{
			"activeTab": func(v string) string { return activeTabStyle.Render(v) },
			"panel":     func(v string) string { return panelStyle.Render(v) },
			"prompt":    func(v string) string { return promptPanelStyle.Render(v) },
			"timer":     func(v string) string { return timerRunningStyle.Render(v) },
			"chart":     func(v string) string { return chartColor(99).Render(v) },
		} {
			if s("test") == "" {
				t.Fatalf("%s/%s rendered empty", theme, name)
			}
		}
	}
	applyTheme("dark")
}
