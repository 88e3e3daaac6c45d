package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/client"
	"github.com/sadopc/tally/internal/timer"
)

var (
	taskPriorities = []string{"LOW", "MEDIUM", "HIGH"}
	taskStatuses   = []string{"TODO", "IN_PROGRESS", "DONE"}
)

type projectListMsg struct {
	projects []api.Project
	err      error
}

type projectDetailMsg struct {
	detail *api.ProjectDetail
	err    error
}

// projectSavedMsg reports a finished project or task mutation.
type projectSavedMsg struct {
	text string
	err  error
}

type projectFields struct {
	name   string
	client string
	rate   string
	tags   string
	status string
}

type taskFields struct {
	title       string
	description string
	priority    string
	status      string
	estimate    string
}

type projectsModel struct {
	api     API
	machine *timer.Machine
	width   int
	height  int

	projects      []api.Project
	detail        *api.ProjectDetail
	cursor        int
	taskCursor    int
	showArchived  bool
	viewingDetail bool

	formActive bool
	form       *huh.Form
	formType   string // "project", "edit_project", "task", "edit_task"
	editingID  string

	// Form values behind pointers survive value copies of the model.
	project *projectFields
	task    *taskFields
}

func newProjectsModel(a API, m *timer.Machine) projectsModel {
	return projectsModel{
		api:     a,
		machine: m,
		project: &projectFields{},
		task:    &taskFields{},
	}
}

func (p *projectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

func (p projectsModel) refresh() tea.Cmd {
	q := client.ProjectQuery{Status: "ACTIVE", Sort: "name_asc"}
	if p.showArchived {
		q.Status = ""
	}
	cmds := []tea.Cmd{func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		projects, err := p.api.ListProjects(ctx, q)
		return projectListMsg{projects: projects, err: err}
	}}
	if p.viewingDetail && p.detail != nil {
		cmds = append(cmds, p.loadDetail(p.detail.ID))
	}
	return tea.Batch(cmds...)
}

func (p projectsModel) loadDetail(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		detail, err := p.api.GetProject(ctx, id)
		return projectDetailMsg{detail: detail, err: err}
	}
}

func (p projectsModel) selected() (api.Project, bool) {
	if p.cursor < len(p.projects) {
		return p.projects[p.cursor], true
	}
	return api.Project{}, false
}

func (p projectsModel) selectedTask() (api.Task, bool) {
	if p.detail != nil && p.taskCursor < len(p.detail.Tasks) {
		return p.detail.Tasks[p.taskCursor], true
	}
	return api.Task{}, false
}

func (p projectsModel) update(msg tea.Msg) (projectsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case projectListMsg:
		if msg.err != nil {
			return p, func() tea.Msg { return errStatus("Projects", msg.err) }
		}
		p.projects = msg.projects
		if p.cursor >= len(p.projects) {
			p.cursor = max(0, len(p.projects)-1)
		}
		return p, nil

	case projectDetailMsg:
		if msg.err != nil {
			p.viewingDetail = false
			return p, func() tea.Msg { return errStatus("Project", msg.err) }
		}
		p.detail = msg.detail
		if p.taskCursor >= len(p.detail.Tasks) {
			p.taskCursor = max(0, len(p.detail.Tasks)-1)
		}
		return p, nil

	case projectSavedMsg:
		if msg.err != nil {
			return p, func() tea.Msg { return errStatus("Save", msg.err) }
		}
		return p, tea.Batch(p.refresh(), func() tea.Msg { return statusMsg{text: msg.text} })
	}

	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		if p.viewingDetail {
			return p.updateDetail(msg)
		}
		return p.updateProjectList(msg)
	}
	return p, nil
}

func (p projectsModel) updateProjectList(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	proj, ok := p.selected()

	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.projects)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if ok {
			p.viewingDetail = true
			p.detail = nil
			p.taskCursor = 0
			return p, p.loadDetail(proj.ID)
		}
	case key.Matches(msg, keys.Archived):
		p.showArchived = !p.showArchived
		p.cursor = 0
		return p, p.refresh()
	case key.Matches(msg, keys.New):
		return p.showProjectForm(nil)
	case key.Matches(msg, keys.Edit):
		if ok {
			return p.showProjectForm(&proj)
		}
	case key.Matches(msg, keys.Delete):
		if ok && proj.Status != "ARCHIVED" {
			return p, archiveProjectCmd(p.api, proj.ID)
		}
	case key.Matches(msg, keys.Start):
		if ok {
			return p, startCmd(p.machine, proj.ID, nil)
		}
	}
	return p, nil
}

func (p projectsModel) updateDetail(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	if p.detail == nil {
		if key.Matches(msg, keys.Back) {
			p.viewingDetail = false
		}
		return p, nil
	}
	task, ok := p.selectedTask()

	switch {
	case key.Matches(msg, keys.Back):
		p.viewingDetail = false
		return p, nil
	case key.Matches(msg, keys.Up):
		if p.taskCursor > 0 {
			p.taskCursor--
		}
	case key.Matches(msg, keys.Down):
		if p.taskCursor < len(p.detail.Tasks)-1 {
			p.taskCursor++
		}
	case key.Matches(msg, keys.New):
		return p.showTaskForm(nil)
	case key.Matches(msg, keys.Edit):
		if ok {
			return p.showTaskForm(&task)
		}
	case key.Matches(msg, keys.Delete):
		if ok && task.Status != "DONE" {
			return p, completeTaskCmd(p.api, task.ID)
		}
	case key.Matches(msg, keys.Start):
		if ok {
			id := task.ID
			return p, startCmd(p.machine, p.detail.ID, &id)
		}
		return p, startCmd(p.machine, p.detail.ID, nil)
	}
	return p, nil
}

// --- Forms ---

func validateRate(s string) error {
	_, err := parseRate(s)
	return err
}

func validateEstimate(s string) error {
	_, err := parseEstimate(s)
	return err
}

func (p projectsModel) showProjectForm(proj *api.Project) (projectsModel, tea.Cmd) {
	*p.project = projectFields{status: "ACTIVE"}
	p.formType = "project"
	p.editingID = ""
	if proj != nil {
		p.formType = "edit_project"
		p.editingID = proj.ID
		*p.project = projectFields{
			name:   proj.Name,
			tags:   strings.Join(proj.Tags, ", "),
			status: proj.Status,
		}
		if proj.ClientName != nil {
			p.project.client = *proj.ClientName
		}
		if proj.HourlyRate != nil {
			p.project.rate = strconv.FormatFloat(*proj.HourlyRate, 'f', -1, 64)
		}
	}

	fields := []huh.Field{
		huh.NewInput().Title("Project Name").Value(&p.project.name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("name is required")
				}
				return nil
			}),
		huh.NewInput().Title("Client").Value(&p.project.client),
		huh.NewInput().Title("Hourly rate (€)").Value(&p.project.rate).Validate(validateRate),
		huh.NewInput().Title("Tags (comma-separated)").Value(&p.project.tags),
	}
	if proj != nil {
		fields = append(fields, huh.NewSelect[string]().Title("Status").
			Options(huh.NewOption("Active", "ACTIVE"), huh.NewOption("Archived", "ARCHIVED")).
			Value(&p.project.status))
	}

	p.form = huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).WithShowErrors(true)
	p.formActive = true
	return p, p.form.Init()
}

func (p projectsModel) showTaskForm(task *api.Task) (projectsModel, tea.Cmd) {
	*p.task = taskFields{priority: "MEDIUM", status: "TODO"}
	p.formType = "task"
	p.editingID = ""
	if task != nil {
		p.formType = "edit_task"
		p.editingID = task.ID
		*p.task = taskFields{title: task.Title, priority: task.Priority, status: task.Status}
		if task.Description != nil {
			p.task.description = *task.Description
		}
		if task.EstimateMinutes != nil {
			p.task.estimate = strconv.Itoa(*task.EstimateMinutes)
		}
	}

	priorityOptions := make([]huh.Option[string], len(taskPriorities))
	for i, v := range taskPriorities {
		priorityOptions[i] = huh.NewOption(strings.ToLower(v), v)
	}
	statusOptions := make([]huh.Option[string], len(taskStatuses))
	for i, v := range taskStatuses {
		statusOptions[i] = huh.NewOption(strings.ToLower(strings.ReplaceAll(v, "_", " ")), v)
	}

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Task Title").Value(&p.task.title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("title is required")
					}
					return nil
				}),
			huh.NewText().Title("Description").Value(&p.task.description),
			huh.NewSelect[string]().Title("Priority").Options(priorityOptions...).Value(&p.task.priority),
			huh.NewSelect[string]().Title("Status").Options(statusOptions...).Value(&p.task.status),
			huh.NewInput().Title("Estimate (minutes)").Value(&p.task.estimate).Validate(validateEstimate),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func (p projectsModel) updateForm(msg tea.Msg) (projectsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		p.form = nil
		switch p.formType {
		case "project", "edit_project":
			return p, saveProjectCmd(p.api, p.editingID, *p.project)
		case "task", "edit_task":
			if p.detail != nil {
				return p, saveTaskCmd(p.api, p.detail.ID, p.editingID, *p.task)
			}
		}
		return p, nil
	}

	return p, cmd
}

// --- Requests ---

func parseRate(s string) (*float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil, errors.New("rate must be a positive number")
	}
	return &v, nil
}

func parseEstimate(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return nil, errors.New("estimate must be a whole number of minutes")
	}
	return &v, nil
}

func parseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s != "" {
		return &s
	}
	return nil
}

func nullable[T any](v *T) api.Nullable[T] {
	if v == nil {
		return api.Null[T]()
	}
	return api.Value(*v)
}

func projectCreateRequest(f projectFields) (api.ProjectCreateRequest, error) {
	rate, err := parseRate(f.rate)
	if err != nil {
		return api.ProjectCreateRequest{}, err
	}
	return api.ProjectCreateRequest{
		Name:       strings.TrimSpace(f.name),
		ClientName: optional(f.client),
		HourlyRate: rate,
		Tags:       parseTags(f.tags),
	}, nil
}

func projectUpdateRequest(f projectFields) (api.ProjectUpdateRequest, error) {
	rate, err := parseRate(f.rate)
	if err != nil {
		return api.ProjectUpdateRequest{}, err
	}
	name := strings.TrimSpace(f.name)
	tags := parseTags(f.tags)
	req := api.ProjectUpdateRequest{
		Name:       &name,
		ClientName: nullable(optional(f.client)),
		HourlyRate: nullable(rate),
		Tags:       &tags,
	}
	if f.status != "" {
		req.Status = &f.status
	}
	return req, nil
}

func taskCreateRequest(projectID string, f taskFields) (api.TaskCreateRequest, error) {
	estimate, err := parseEstimate(f.estimate)
	if err != nil {
		return api.TaskCreateRequest{}, err
	}
	return api.TaskCreateRequest{
		ProjectID:       projectID,
		Title:           strings.TrimSpace(f.title),
		Description:     optional(f.description),
		Status:          f.status,
		Priority:        f.priority,
		EstimateMinutes: estimate,
	}, nil
}

func taskUpdateRequest(f taskFields) (api.TaskUpdateRequest, error) {
	estimate, err := parseEstimate(f.estimate)
	if err != nil {
		return api.TaskUpdateRequest{}, err
	}
	title := strings.TrimSpace(f.title)
	req := api.TaskUpdateRequest{
		Title:           &title,
		Description:     nullable(optional(f.description)),
		EstimateMinutes: nullable(estimate),
	}
	if f.status != "" {
		req.Status = &f.status
	}
	if f.priority != "" {
		req.Priority = &f.priority
	}
	return req, nil
}

func saveProjectCmd(a API, id string, f projectFields) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		if id == "" {
			req, err := projectCreateRequest(f)
			if err == nil {
				_, err = a.CreateProject(ctx, req)
			}
			return projectSavedMsg{text: "Project created", err: err}
		}
		req, err := projectUpdateRequest(f)
		if err == nil {
			_, err = a.UpdateProject(ctx, id, req)
		}
		return projectSavedMsg{text: "Project updated", err: err}
	}
}

func saveTaskCmd(a API, projectID, id string, f taskFields) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		if id == "" {
			req, err := taskCreateRequest(projectID, f)
			if err == nil {
				_, err = a.CreateTask(ctx, req)
			}
			return projectSavedMsg{text: "Task created", err: err}
		}
		req, err := taskUpdateRequest(f)
		if err == nil {
			_, err = a.UpdateTask(ctx, id, req)
		}
		return projectSavedMsg{text: "Task updated", err: err}
	}
}

func archiveProjectCmd(a API, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		status := "ARCHIVED"
		_, err := a.UpdateProject(ctx, id, api.ProjectUpdateRequest{Status: &status})
		return projectSavedMsg{text: "Project archived", err: err}
	}
}

func completeTaskCmd(a API, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()
		status := "DONE"
		_, err := a.UpdateTask(ctx, id, api.TaskUpdateRequest{Status: &status})
		return projectSavedMsg{text: "Task done", err: err}
	}
}

// --- Rendering ---

func (p projectsModel) view() string {
	if p.formActive && p.form != nil {
		titles := map[string]string{
			"project":      "New Project",
			"edit_project": "Edit Project",
			"task":         "New Task",
			"edit_task":    "Edit Task",
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(titles[p.formType]), "", p.form.View())
		return panelStyle.Width(p.width - 4).Render(content)
	}

	if p.viewingDetail {
		return p.renderDetail()
	}
	return p.renderProjectList()
}

func (p projectsModel) renderProjectList() string {
	w := p.width - 4
	title := titleStyle.Render("Projects")
	if p.showArchived {
		title += mutedStyle.Render("  (including archived)")
	}

	if len(p.projects) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No projects yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	header := mutedStyle.Render(fmt.Sprintf("  %-3s %-24s %-16s %10s %6s %8s", "", "Name", "Client", "Rate", "Tasks", "Entries"))
	rows = append(rows, header)

	for i, proj := range p.projects {
		dot := chartColor(i).Render("●")
		if proj.Status == "ARCHIVED" {
			dot = mutedStyle.Render("○")
		}
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		clientName, rate := "", ""
		if proj.ClientName != nil {
			clientName = *proj.ClientName
		}
		if proj.HourlyRate != nil {
			rate = formatMoney(*proj.HourlyRate, "") + "/h"
		}
		row := style.Render(fmt.Sprintf("%s%s %-24s %-16s %10s %6d %8d",
			cursor, dot, proj.Name, clientName, rate, proj.TaskCount, proj.EntryCount))
		if len(proj.Tags) > 0 {
			row += mutedStyle.Render(" [" + strings.Join(proj.Tags, ", ") + "]")
		}
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  u: edit  d: archive  a: archived  s: start  enter: details"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p projectsModel) renderDetail() string {
	w := p.width - 4
	if p.detail == nil {
		return panelStyle.Width(w).Render(mutedStyle.Render("Loading..."))
	}
	d := p.detail
	title := titleStyle.Render(d.Name)
	if d.ClientName != nil {
		title += mutedStyle.Render(" · " + *d.ClientName)
	}

	rows := []string{title, "", headerStyle.Render("Tasks")}
	if len(d.Tasks) == 0 {
		rows = append(rows, mutedStyle.Render("  No tasks. Press n to add one."))
	}
	for i, task := range d.Tasks {
		cursor := "  "
		style := normalItemStyle
		if i == p.taskCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		mark := "○"
		switch task.Status {
		case "IN_PROGRESS":
			mark = "◐"
		case "DONE":
			mark = "●"
		}
		line := style.Render(fmt.Sprintf("%s%s %s", cursor, mark, task.Title))
		meta := strings.ToLower(task.Priority)
		if task.EstimateMinutes != nil {
			meta += fmt.Sprintf(" · %d min", *task.EstimateMinutes)
		}
		rows = append(rows, line+mutedStyle.Render("  "+meta))
	}

	rows = append(rows, "", headerStyle.Render("Attachments"))
	if len(d.Attachments) == 0 {
		rows = append(rows, mutedStyle.Render("  No attachments"))
	}
	for _, att := range d.Attachments {
		rows = append(rows, fmt.Sprintf("  %-32s %10s  %s",
			att.Filename, humanize.Bytes(uint64(att.SizeBytes)), mutedStyle.Render(humanize.Time(att.CreatedAt))))
	}

	var tracked int64
	for _, e := range d.TimeEntries {
		tracked += e.DurationSeconds
	}
	rows = append(rows, "", mutedStyle.Render(fmt.Sprintf("  %d entries · %s tracked", len(d.TimeEntries), formatHours(tracked))))

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new task  u: edit  d: done  s: start  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
