package server

import (
	"net/http"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/store"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := userFrom(r.Context())
	projects, err := s.store.ListProjects(r.Context(), user.ID, store.ProjectFilter{
		Query:  q.Get("q"),
		Status: store.ProjectStatus(q.Get("status")),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, toAPIProject(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req api.ProjectCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFrom(r.Context())
	p, err := s.store.CreateProject(r.Context(), user.ID, store.ProjectParams{
		Name:       req.Name,
		ClientName: req.ClientName,
		HourlyRate: req.HourlyRate,
		Status:     store.ProjectStatus(req.Status),
		Tags:       req.Tags,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIProject(*p))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	d, err := s.store.GetProjectDetail(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIDetail(*d))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req api.ProjectUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFrom(r.Context())
	p, err := s.store.UpdateProject(r.Context(), user.ID, r.PathValue("id"), projectUpdateFromRequest(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIProject(*p))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	keys, err := s.store.DeleteProject(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.removeBlobs(keys...)
	writeJSON(w, http.StatusOK, api.Success{Success: true})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	tasks, err := s.store.ListTasks(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITasks(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req api.TaskCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ProjectID == "" {
		s.writeError(w, r, badRequestf("projectId", "is required"))
		return
	}
	user := userFrom(r.Context())
	t, err := s.store.CreateTask(r.Context(), user.ID, store.TaskParams{
		ProjectID:       req.ProjectID,
		Title:           req.Title,
		Description:     req.Description,
		Status:          store.TaskStatus(req.Status),
		Priority:        store.TaskPriority(req.Priority),
		Tags:            req.Tags,
		EstimateMinutes: req.EstimateMinutes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPITask(*t))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req api.TaskUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFrom(r.Context())
	t, err := s.store.UpdateTask(r.Context(), user.ID, r.PathValue("id"), taskUpdateFromRequest(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPITask(*t))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.store.DeleteTask(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Success{Success: true})
}
