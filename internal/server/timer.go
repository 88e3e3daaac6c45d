package server

import (
	"net/http"
	"strings"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/store"
)

const (
	defaultEntryLimit = 100
	maxEntryLimit     = 500
)

func (s *Server) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	var req api.StartTimerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	if req.ProjectID == "" {
		s.writeError(w, r, badRequestf("projectId", "is required"))
		return
	}
	user := userFrom(r.Context())
	entry, err := s.store.StartTimer(r.Context(), user.ID, store.StartParams{
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		Note:      req.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIEntry(*entry))
}

func (s *Server) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	entry, err := s.store.StopTimer(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIEntry(*entry))
}

func (s *Server) handleActiveTimer(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	entry, err := s.store.ActiveEntry(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toAPIEntry(*entry))
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultEntryLimit, maxEntryLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFrom(r.Context())
	entries, err := s.store.ListEntries(r.Context(), user.ID, store.EntryFilter{
		ProjectID: queryString(r, "projectId"),
		TaskID:    queryString(r, "taskId"),
		Limit:     limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIEntries(entries))
}

func (s *Server) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	var req api.EditEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	edit, err := editFromRequest(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFrom(r.Context())
	entry, err := s.store.EditEntry(r.Context(), user.ID, r.PathValue("id"), edit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIEntry(*entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.store.DeleteEntry(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Success{Success: true})
}
