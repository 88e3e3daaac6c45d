package server

import (
	"net/http"

	"github.com/sadopc/tally/internal/export"
	"github.com/sadopc/tally/internal/timeutil"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rng, err := timeutil.ParseRange(r.URL.Query().Get("range"), timeutil.Today)
	if err != nil {
		s.writeError(w, r, badRequestf("range", "%v", err))
		return
	}
	user := userFrom(r.Context())
	snap, err := s.engine.Summarize(r.Context(), user.ID, rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, err := timeutil.ParseRange(r.URL.Query().Get("range"), timeutil.Week)
	if err != nil {
		s.writeError(w, r, badRequestf("range", "%v", err))
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, badRequestf("format", "%v", err))
		return
	}
	user := userFrom(r.Context())
	rows, err := s.engine.ExportRows(r.Context(), user.ID, rng)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(string(rng))+`"`)
	w.WriteHeader(http.StatusOK)
	switch format {
	case export.JSON:
		err = export.WriteJSON(w, string(rng), rows, s.clock())
	default:
		err = export.WriteCSV(w, rows, s.engine.Location())
	}
	if err != nil {
		s.log.WithError(err).Warn("write export")
	}
}
