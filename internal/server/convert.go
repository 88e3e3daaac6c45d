package server

import (
	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/store"
)

func toAPIEntry(e store.TimeEntry) api.TimeEntry {
	out := api.TimeEntry{
		ID:              e.ID,
		ProjectID:       e.ProjectID,
		TaskID:          e.TaskID,
		StartAt:         e.StartTime,
		EndAt:           e.EndTime,
		DurationSeconds: e.Duration,
		Note:            e.Note,
		IsManual:        e.IsManual,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		Project:         &api.ProjectRef{ID: e.Project.ID, Name: e.Project.Name},
	}
	if e.Task != nil {
		out.Task = &api.TaskRef{ID: e.Task.ID, Title: e.Task.Title}
	}
	return out
}

func toAPIEntries(entries []store.TimeEntry) []api.TimeEntry {
	out := make([]api.TimeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAPIEntry(e))
	}
	return out
}

func toAPIProject(p store.Project) api.Project {
	return api.Project{
		ID:         p.ID,
		Name:       p.Name,
		ClientName: p.ClientName,
		Status:     string(p.Status),
		HourlyRate: p.HourlyRate,
		Tags:       nonNil(p.Tags),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		TaskCount:  p.TaskCount,
		EntryCount: p.EntryCount,
	}
}

func toAPITask(t store.Task) api.Task {
	return api.Task{
		ID:              t.ID,
		ProjectID:       t.ProjectID,
		Title:           t.Title,
		Description:     t.Description,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		Tags:            nonNil(t.Tags),
		EstimateMinutes: t.EstimateMinutes,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func toAPITasks(tasks []store.Task) []api.Task {
	out := make([]api.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toAPITask(t))
	}
	return out
}

func toAPIAttachment(a store.Attachment) api.Attachment {
	return api.Attachment{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		TaskID:     a.TaskID,
		Filename:   a.Filename,
		StorageKey: a.StorageKey,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		CreatedAt:  a.CreatedAt,
	}
}

func toAPIAttachments(list []store.Attachment) []api.Attachment {
	out := make([]api.Attachment, 0, len(list))
	for _, a := range list {
		out = append(out, toAPIAttachment(a))
	}
	return out
}

func toAPIDetail(d store.ProjectDetail) api.ProjectDetail {
	return api.ProjectDetail{
		Project:     toAPIProject(d.Project),
		Tasks:       toAPITasks(d.Tasks),
		Attachments: toAPIAttachments(d.Attachments),
		TimeEntries: toAPIEntries(d.Entries),
	}
}

func toAPISettings(s store.Settings) api.Settings {
	return api.Settings{Theme: s.Theme, Locale: s.Locale, Currency: s.Currency}
}

func editFromRequest(req api.EditEntryRequest) (store.EntryEdit, error) {
	var edit store.EntryEdit
	if req.StartAt.Set {
		if req.StartAt.Null {
			return edit, badRequestf("startAt", "cannot be null")
		}
		v := req.StartAt.Value
		edit.StartAt = &v
	}
	if req.EndAt.Set {
		if req.EndAt.Null {
			edit.ClearEndAt = true
		} else {
			v := req.EndAt.Value
			edit.EndAt = &v
		}
	}
	if req.Note.Set {
		if req.Note.Null {
			edit.ClearNote = true
		} else {
			v := req.Note.Value
			edit.Note = &v
		}
	}
	return edit, nil
}

func projectUpdateFromRequest(req api.ProjectUpdateRequest) store.ProjectUpdate {
	u := store.ProjectUpdate{Name: req.Name, Tags: req.Tags}
	if req.ClientName.Set {
		if req.ClientName.Null {
			u.ClearClientName = true
		} else {
			v := req.ClientName.Value
			u.ClientName = &v
		}
	}
	if req.HourlyRate.Set {
		if req.HourlyRate.Null {
			u.ClearHourlyRate = true
		} else {
			v := req.HourlyRate.Value
			u.HourlyRate = &v
		}
	}
	if req.Status != nil {
		st := store.ProjectStatus(*req.Status)
		u.Status = &st
	}
	return u
}

func taskUpdateFromRequest(req api.TaskUpdateRequest) store.TaskUpdate {
	u := store.TaskUpdate{Title: req.Title, Tags: req.Tags}
	if req.Description.Set {
		if req.Description.Null {
			u.ClearDescription = true
		} else {
			v := req.Description.Value
			u.Description = &v
		}
	}
	if req.EstimateMinutes.Set {
		if req.EstimateMinutes.Null {
			u.ClearEstimate = true
		} else {
			v := req.EstimateMinutes.Value
			u.EstimateMinutes = &v
		}
	}
	if req.Status != nil {
		st := store.TaskStatus(*req.Status)
		u.Status = &st
	}
	if req.Priority != nil {
		p := store.TaskPriority(*req.Priority)
		u.Priority = &p
	}
	return u
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
