package server

import (
	"net/http"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/store"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	settings, err := s.store.GetSettings(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPISettings(*settings))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req api.SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := userFrom(r.Context())
	settings, err := s.store.UpdateSettings(r.Context(), user.ID, store.SettingsUpdate{
		Theme:    req.Theme,
		Locale:   req.Locale,
		Currency: req.Currency,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPISettings(*settings))
}
